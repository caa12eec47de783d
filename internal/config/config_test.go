package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandHome(t *testing.T) {
	home := filepath.Join("/", "home", "u")
	assert.Equal(t, filepath.Join(home, "logs"), expandHome("~/logs", home))
	assert.Equal(t, "/abs/path", expandHome("/abs/path", home))
	assert.Equal(t, "~", expandHome("~", home))
}
