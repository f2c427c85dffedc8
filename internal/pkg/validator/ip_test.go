package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidIP(t *testing.T) {
	assert.True(t, IsValidIP("192.0.2.1"))
	assert.True(t, IsValidIP("fe80::1%eth0"))
	assert.True(t, IsValidIP("[2001:db8::1]"))
	assert.False(t, IsValidIP(""))
	assert.False(t, IsValidIP("example.com"))
}

func TestIsPublicHost(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"example.com", true},
		{"Example.COM.", true},
		{"8.8.8.8", true},
		{"2606:4700::1111", true},
		{"localhost", false},
		{"api.localhost", false},
		{"127.0.0.1", false},
		{"10.1.2.3", false},
		{"192.168.0.10", false},
		{"169.254.169.254", false},
		{"0.0.0.0", false},
		{"::1", false},
		{"[::1]", false},
		{"fd00::1", false},
		{"::ffff:127.0.0.1", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPublicHost(tt.host))
		})
	}
}
