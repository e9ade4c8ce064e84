package executor

import "os"

// CgroupDriver identifies which cgroup hierarchy, if any, is present on
// the host.
type CgroupDriver string

const (
	CgroupNone CgroupDriver = "none"
	CgroupV1   CgroupDriver = "v1"
	CgroupV2   CgroupDriver = "v2"
)

// DetectDriver reports which cgroup version is mounted at /sys/fs/cgroup.
// It is not called anywhere in the spawn pipeline: cgroup limits
// enforcement is a Non-goal (spec.md §1), and this helper exists only so
// a future resource-limits feature has somewhere to start from, matching
// the original implementation's own unwired cgroup-detection helper.
func DetectDriver() CgroupDriver {
	if info, err := os.Stat("/sys/fs/cgroup/cgroup.controllers"); err == nil && !info.IsDir() {
		return CgroupV2
	}
	if info, err := os.Stat("/sys/fs/cgroup/memory"); err == nil && info.IsDir() {
		return CgroupV1
	}
	return CgroupNone
}
