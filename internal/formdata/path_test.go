package formdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Path
		wantErr bool
	}{
		{
			name:  "dotted keys",
			input: "section9.citizenship.status",
			want: Path{
				{Key: "section9"}, {Key: "citizenship"}, {Key: "status"},
			},
		},
		{
			name:  "index in the middle",
			input: "section13.militaryEmployment.entries[0].supervisor.name",
			want: Path{
				{Key: "section13"}, {Key: "militaryEmployment"}, {Key: "entries"},
				{Index: 0, IsIndex: true}, {Key: "supervisor"}, {Key: "name"},
			},
		},
		{
			name:  "consecutive indexes",
			input: "grid[2][10]",
			want: Path{
				{Key: "grid"}, {Index: 2, IsIndex: true}, {Index: 10, IsIndex: true},
			},
		},
		{name: "empty", input: "", wantErr: true},
		{name: "whitespace", input: "   ", wantErr: true},
		{name: "leading dot", input: ".section9", wantErr: true},
		{name: "trailing dot", input: "section9.", wantErr: true},
		{name: "double dot", input: "section9..name", wantErr: true},
		{name: "leading index", input: "[0].name", wantErr: true},
		{name: "unclosed bracket", input: "entries[0", wantErr: true},
		{name: "signed index", input: "entries[+1]", wantErr: true},
		{name: "negative index", input: "entries[-1]", wantErr: true},
		{name: "empty index", input: "entries[]", wantErr: true},
		{name: "text after index", input: "entries[0]name", wantErr: true},
		{name: "stray bracket", input: "entries]0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePath(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestParsePath_EmptyIsSentinel(t *testing.T) {
	_, err := ParsePath("")
	assert.ErrorIs(t, err, ErrEmptyPath)
}

func TestPath_HasKeyIsExact(t *testing.T) {
	p := MustParsePath("section13.entries[0].platformDate")

	assert.True(t, p.HasKey("platformDate"))
	assert.False(t, p.HasKey("fromDate"))
	assert.False(t, p.HasKey("Date"))
	assert.Equal(t, []string{"section13", "entries", "platformDate"}, p.Keys())
}

func TestMustParsePath_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParsePath("a..b") })
}
