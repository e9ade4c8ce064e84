package options

import (
	"reflect"
	"testing"
)

// testFlags and testMountFlags exist only to exercise ToArgs's generic
// reflection paths (zero-value skip, map, slice, anonymous embedding)
// that Slirp4netns alone doesn't touch; see slirp_test.go for the real
// domain flag struct.
type testFlags struct {
	Arch   string `flag:"--arch"`
	Detach bool   `flag:"--detach"`
}

type testMountFlags struct {
	Mount []string          `flag:"--mount"`
	Label map[string]string `flag:"--label"`
}

type testEmbedding struct {
	testFlags
	testMountFlags
}

func TestToArgs(t *testing.T) {
	cases := []struct {
		name string
		got  []string
		want []string
	}{
		{
			name: "empty",
			got:  ToArgs(&testFlags{}),
			want: nil,
		},
		{
			name: "single flag",
			got:  ToArgs(&testFlags{Arch: "arm64"}),
			want: []string{"--arch", "arm64"},
		},
		{
			name: "string and bool",
			got:  ToArgs(&testFlags{Arch: "arm64", Detach: true}),
			want: []string{"--arch", "arm64", "--detach"},
		},
		{
			name: "map flag sorted by key",
			got:  ToArgs(&testMountFlags{Label: map[string]string{"b": "2", "a": "1", "c": "3"}}),
			want: []string{"--label", "a=1,b=2,c=3"},
		},
		{
			name: "slice flag repeats the flag name",
			got:  ToArgs(&testMountFlags{Mount: []string{"/host:/guest", "/host2:/guest2"}}),
			want: []string{
				"--mount", "/host:/guest",
				"--mount", "/host2:/guest2",
			},
		},
		{
			name: "anonymous embedded structs flatten",
			got: ToArgs(&testEmbedding{
				testFlags:      testFlags{Arch: "arm64"},
				testMountFlags: testMountFlags{Mount: []string{"/a:/b"}},
			}),
			want: []string{
				"--arch", "arm64",
				"--mount", "/a:/b",
			},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if !reflect.DeepEqual(c.got, c.want) {
				t.Errorf("got %v, want %v", c.got, c.want)
			}
		})
	}
}
