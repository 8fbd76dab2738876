package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"203.0.113.77", "203.0.113.0"},
		{"2001:db8:abcd:12::1", "2001:db8:abcd::"},
		{"not-an-ip", "invalid"},
		{"", "invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, AnonymizeIP(tt.in))
		})
	}
}

func TestHashEmailNormalizes(t *testing.T) {
	a := HashEmail("Ana@Example.com ")
	b := HashEmail("ana@example.com")

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, HashEmail("bia@example.com"))
}
