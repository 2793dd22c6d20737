package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Lunar Phase Hoodie", "lunar-phase-hoodie"},
		{"  Classic   Black Hoodie! ", "classic-black-hoodie"},
		{"Crème Brûlée Tee", "creme-brulee-tee"},
		{"---", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Generate(tt.in))
		})
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("classic-black-hoodie"))
	assert.True(t, Valid("tee2"))
	assert.False(t, Valid(""))
	assert.False(t, Valid("Black-Hoodie"))
	assert.False(t, Valid("double--dash"))
	assert.False(t, Valid("-leading"))
}
