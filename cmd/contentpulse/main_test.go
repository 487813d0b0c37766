package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeyValues(t *testing.T) {
	blob, err := parseKeyValues([]string{"instance=https://acme.service-now.com", " username =admin", "password=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"instance": "https://acme.service-now.com",
		"username": "admin",
		"password": "a=b",
	}, blob)

	_, err = parseKeyValues(nil)
	assert.Error(t, err)
	_, err = parseKeyValues([]string{"apiKey"})
	assert.Error(t, err)
	_, err = parseKeyValues([]string{"=v"})
	assert.Error(t, err)
}
