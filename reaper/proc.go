package reaper

import "github.com/queer/squish/registry"

// ProcExists is the production ProcessExists implementation: it probes
// /proc/<pid> existence, the authoritative liveness signal per spec.md
// §4.E and §9.
var ProcExists ProcessExists = registry.ProcAlive
