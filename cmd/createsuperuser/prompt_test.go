package main

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubPasswords(t *testing.T, answers ...string) {
	t.Helper()
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	readPassword = func(int) ([]byte, error) {
		if len(answers) == 0 {
			return nil, errors.New("no more input")
		}
		next := answers[0]
		answers = answers[1:]
		return []byte(next), nil
	}
}

func TestPromptLine(t *testing.T) {
	var out bytes.Buffer
	reader := bufio.NewReader(strings.NewReader("  root@x.io \nroot"))

	got, err := promptLine(reader, &out, "Email address")
	require.NoError(t, err)
	assert.Equal(t, "root@x.io", got)
	assert.Equal(t, "Email address: ", out.String())

	got, err = promptLine(reader, &out, "Username")
	require.NoError(t, err)
	assert.Equal(t, "root", got)

	_, err = promptLine(reader, &out, "Again")
	assert.Error(t, err)
}

func TestPromptPassword(t *testing.T) {
	t.Run("match", func(t *testing.T) {
		stubPasswords(t, "s3cret", "s3cret")
		got, err := promptPassword(&bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, "s3cret", got)
	})
	t.Run("mismatch", func(t *testing.T) {
		stubPasswords(t, "a", "b")
		_, err := promptPassword(&bytes.Buffer{})
		assert.EqualError(t, err, "passwords didn't match")
	})
	t.Run("blank", func(t *testing.T) {
		stubPasswords(t, "", "")
		_, err := promptPassword(&bytes.Buffer{})
		assert.Error(t, err)
	})
}
