package main

import (
	"bytes"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
)

func Test_writeSecrets(t *testing.T) {
	var buf bytes.Buffer

	err := writeSecrets(&buf, rand.Reader)
	require.NoError(t, err)

	env, err := godotenv.Unmarshal(buf.String())
	require.NoError(t, err, "output must be valid .env")

	require.Len(t, env, 2)
	require.Len(t, env["JWT_SECRET"], 2*SecretKeyBytesLen)
	require.Len(t, env["TOKEN_FINGERPRINT_KEY"], 2*SecretKeyBytesLen)
	require.NotEqual(t, env["JWT_SECRET"], env["TOKEN_FINGERPRINT_KEY"], "keys must be independent")
}

func Test_writeSecrets_ShortRandom(t *testing.T) {
	var buf bytes.Buffer

	err := writeSecrets(&buf, strings.NewReader("too short"))

	require.Error(t, err)
}
