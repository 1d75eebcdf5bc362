package topic

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stringer struct{ s string }

func (s stringer) String() string { return s.s }

func TestName_Namespace(t *testing.T) {
	tests := []struct {
		name      Name
		namespace string
		base      string
	}{
		{Name("user:login"), "user", "login"},
		{Name("user:profile:updated"), "user", "profile:updated"},
		{Name("tick"), "", "tick"},
		{Name(""), "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name.String(), func(t *testing.T) {
			assert.Equal(t, tt.namespace, tt.name.Namespace())
			assert.Equal(t, tt.base, tt.name.Base())
		})
	}
}

func TestName_IsWildcard(t *testing.T) {
	assert.True(t, Name("*").IsWildcard())
	assert.False(t, Name("user:*").IsWildcard())
	assert.False(t, Name("tick").IsWildcard())
}

func TestJoin(t *testing.T) {
	assert.Equal(t, Name("user:login"), Join("user", "login"))
	assert.Equal(t, Name("a:b:c"), Join("a", "b", "c"))
	assert.Equal(t, Name("tick"), Join("tick"))
}

func TestNameOf(t *testing.T) {
	tests := []struct {
		in   any
		want Name
	}{
		{"tick", "tick"},
		{Name("tick"), "tick"},
		{42, "42"},
		{3.5, "3.5"},
		{stringer{"custom"}, "custom"},
		{true, "true"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NameOf(tt.in))
	}
}

func TestPattern_Match(t *testing.T) {
	tests := []struct {
		name    string
		pattern Pattern
		input   string
		want    bool
	}{
		{"any matches everything", Any(), "order:created", true},
		{"any matches empty", Any(), "", true},
		{"glob prefix", MustGlob("user:*"), "user:login", true},
		{"glob prefix miss", MustGlob("user:*"), "order:created", false},
		{"glob single char", MustGlob("tick?"), "tick1", true},
		{"glob single char miss", MustGlob("tick?"), "tick12", false},
		{"namespace", Namespace("user"), "user:logout", true},
		{"namespace miss", Namespace("user"), "username", false},
		{"regexp anchored", MustRegexp("^user:"), "user:login", true},
		{"regexp anchored miss", MustRegexp("^user:"), "order:created", false},
		{"regexp unanchored", MustRegexp("tick"), "stock-ticker", true},
		{"zero matches nothing", Pattern{}, "tick", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pattern.Match(tt.input))
		})
	}
}

func TestPattern_String(t *testing.T) {
	assert.Equal(t, "*", Any().String())
	assert.Equal(t, "user:*", MustGlob("user:*").String())
	assert.Equal(t, "/^user:/", MustRegexp("^user:").String())
	assert.Equal(t, "^user:", MustRegexp("^user:").Expr())
}

func TestPattern_Equal(t *testing.T) {
	assert.True(t, MustRegexp("^a").Equal(MustRegexp("^a")))
	assert.False(t, MustRegexp("^a").Equal(MustRegexp("^b")))
	assert.False(t, MustRegexp("a*").Equal(MustGlob("a*")))
	assert.True(t, Any().Equal(MustGlob("*")))
	assert.True(t, FromRegexp(regexp.MustCompile("x+")).Equal(MustRegexp("x+")))
}

func TestRegexp_Invalid(t *testing.T) {
	_, err := Regexp("([a-z")
	require.Error(t, err)

	var perr *PatternError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "([a-z", perr.Expr)
	assert.ErrorIs(t, err, ErrInvalidPattern)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestGlob_Invalid(t *testing.T) {
	_, err := Glob("")
	assert.ErrorIs(t, err, ErrInvalidPattern)

	_, err = Glob(`user\`)
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestMustRegexp_Panics(t *testing.T) {
	assert.Panics(t, func() { MustRegexp("(") })
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		kind Kind
		name Name
	}{
		{"tick", KindNone, "tick"},
		{"user:login", KindNone, "user:login"},
		{"*", KindAny, ""},
		{"user:*", KindGlob, ""},
		{"order.?", KindGlob, ""},
		{"/^user:/", KindRegexp, ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			id, err := Parse(tt.in)
			require.NoError(t, err)

			if tt.kind == KindNone {
				assert.Equal(t, tt.name, id)
				return
			}
			p, ok := id.(Pattern)
			require.True(t, ok, "expected Pattern, got %T", id)
			assert.Equal(t, tt.kind, p.Kind())
			assert.Equal(t, tt.in, p.String())
		})
	}
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	_, err = Parse("/(unclosed/")
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestNormalize(t *testing.T) {
	id, err := Normalize(Name("*"))
	require.NoError(t, err)
	assert.Equal(t, Any(), id)

	id, err = Normalize(Name("tick"))
	require.NoError(t, err)
	assert.Equal(t, Name("tick"), id)

	p := MustGlob("a*")
	id, err = Normalize(&p)
	require.NoError(t, err)
	assert.Equal(t, p, id)

	for _, bad := range []Identifier{nil, Name(""), Pattern{}, (*Pattern)(nil)} {
		_, err := Normalize(bad)
		assert.ErrorIs(t, err, ErrInvalidIdentifier)
	}
}
