package storage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/bestiary/Monsters/a.png",
		PublicURL("https://cdn.example.com/", "bestiary", "Monsters/a.png"))
	assert.Equal(t, "http://localhost:9000/bestiary/Monsters/a.png",
		PublicURL("http://localhost:9000", "bestiary", "/Monsters/a.png"))
}

func TestPublicReadPolicy(t *testing.T) {
	var policy struct {
		Statement []struct {
			Effect   string
			Action   []string
			Resource []string
		}
	}
	require.NoError(t, json.Unmarshal([]byte(publicReadPolicy("bestiary", "/Monsters/")), &policy))
	require.Len(t, policy.Statement, 1)
	assert.Equal(t, "Allow", policy.Statement[0].Effect)
	assert.Equal(t, []string{"s3:GetObject"}, policy.Statement[0].Action)
	assert.Equal(t, []string{"arn:aws:s3:::bestiary/Monsters/*"}, policy.Statement[0].Resource)
}
