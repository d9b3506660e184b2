package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteLabels(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeLabels(&buf, "app1", "A-B", 2, 3))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"SEAT\tA1\tAPP1|SEAT|A1|v1",
		"SEAT\tA2\tAPP1|SEAT|A2|v1",
		"SEAT\tB1\tAPP1|SEAT|B1|v1",
		"SEAT\tB2\tAPP1|SEAT|B2|v1",
		"LOCKER\t001\tAPP1|LOCKER|001|v1",
		"LOCKER\t002\tAPP1|LOCKER|002|v1",
		"LOCKER\t003\tAPP1|LOCKER|003|v1",
	}, lines)

	assert.Error(t, writeLabels(&buf, "qr", "A-B", 2, 3))
}

func TestLabelsCommand(t *testing.T) {
	var buf bytes.Buffer
	err := newApp(&buf).Run(context.Background(), []string{"kioskctl", "labels", "--rows", "C-C", "--cols", "1", "--lockers", "1"})
	require.NoError(t, err)
	assert.Equal(t, "SEAT\tC1\tSEAT:C1\nLOCKER\t001\tLOCKER:001\n", buf.String())
}
