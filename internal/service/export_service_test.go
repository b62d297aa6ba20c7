package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExport(t *testing.T) {
	f := newServiceFixture(t)
	eu := f.create(t, "Europe", "")
	f.create(t, "France", eu.ID)
	f.create(t, "Asia", "")

	storage := &fakeStorage{}
	svc := NewExportService(f.svc, storage, time.Hour).(*exportService)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC) }

	result, err := svc.Export(context.Background(), "region")
	require.NoError(t, err)

	assert.Equal(t, 3, result.Count)
	assert.True(t, strings.HasPrefix(result.ObjectName, "exports/region/20260301T083000-"))
	assert.True(t, strings.HasSuffix(result.ObjectName, ".json"))
	assert.Contains(t, result.DownloadURL, result.ObjectName)
	assert.Contains(t, result.DownloadURL, "expires=3600")

	var snapshot TreeSnapshot
	require.NoError(t, json.Unmarshal(storage.objects[result.ObjectName], &snapshot))
	assert.Equal(t, "region", snapshot.Bundle)
	assert.Equal(t, 3, snapshot.Count)
	require.Len(t, snapshot.Tree, 2)
	assert.Equal(t, "Asia", snapshot.Tree[0].Label)
	require.Len(t, snapshot.Tree[1].Children, 1)
	assert.Equal(t, "France", snapshot.Tree[1].Children[0].Label)
}

func TestExport_AllBundles(t *testing.T) {
	f := newServiceFixture(t)
	storage := &fakeStorage{}
	svc := NewExportService(f.svc, storage, time.Minute)

	result, err := svc.Export(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Count)
	assert.True(t, strings.HasPrefix(result.ObjectName, "exports/all/"))
}

func TestExport_UploadFailure(t *testing.T) {
	f := newServiceFixture(t)
	svc := NewExportService(f.svc, &fakeStorage{putErr: errUnavailable}, time.Minute)

	_, err := svc.Export(context.Background(), "region")
	assert.ErrorIs(t, err, errUnavailable)
}
