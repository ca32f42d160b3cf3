package repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatchSource(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		want    string
		wantErr bool
	}{
		{
			name: "main",
			src:  "use std::io;\n\nfn main() {\n    run();\n}\n",
			want: "use std::io;\n\nfn main() {\n    " + PatchStatement + "\n    run();\n}\n",
		},
		{
			name: "main preferred over earlier function",
			src:  "fn helper() {\n}\n\nfn main() {\n}\n",
			want: "fn helper() {\n}\n\nfn main() {\n    " + PatchStatement + "\n}\n",
		},
		{
			name: "first public function in a library",
			src:  "pub const fn size() -> usize { 4 }\n\nimpl Foo {\n    pub fn new(x: u32) -> Self {\n        Foo { x }\n    }\n}\n",
			want: "pub const fn size() -> usize { 4 }\n\nimpl Foo {\n    pub fn new(x: u32) -> Self {\n        " + PatchStatement + "\n        Foo { x }\n    }\n}\n",
		},
		{
			name: "crlf line endings",
			src:  "fn main() {\r\n}\r\n",
			want: "fn main() {\r\n    " + PatchStatement + "\r\n}\r\n",
		},
		{
			name:    "no function",
			src:     "pub mod a;\npub mod b;\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PatchSource([]byte(tt.src))
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}
