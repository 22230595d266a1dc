// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package chroot_test

import (
	"archive/tar"
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z3ntu/pmbootstrap/internal/apkindex"
	"github.com/z3ntu/pmbootstrap/internal/chroot"
	pmhttp "github.com/z3ntu/pmbootstrap/internal/http"
	"github.com/z3ntu/pmbootstrap/internal/run"
	"github.com/z3ntu/pmbootstrap/internal/sys"
)

const testKey = "alpine-devel@lists.alpinelinux.org-6165ee59.rsa.pub"

// tarGzip returns a gzip compressed tar archive with the given files. Each
// file is written as separate gzip stream like in .apk files.
func tarGzip(t *testing.T, segments ...map[string]string) []byte {
	t.Helper()

	var out bytes.Buffer

	for _, files := range segments {
		gzipWriter := gzip.NewWriter(&out)
		tarWriter := tar.NewWriter(gzipWriter)

		for name, content := range files {
			require.NoError(t, tarWriter.WriteHeader(&tar.Header{
				Name: name,
				Mode: 0o755,
				Size: int64(len(content)),
			}))
			_, err := tarWriter.Write([]byte(content))
			require.NoError(t, err)
		}

		require.NoError(t, tarWriter.Flush())
		require.NoError(t, gzipWriter.Close())
	}

	return out.Bytes()
}

func TestExtractApkStatic(t *testing.T) {
	tests := []struct {
		name     string
		segments []map[string]string
		err      error
	}{
		{
			name: "valid",
			segments: []map[string]string{
				{".SIGN.RSA." + testKey: "pkgsig"},
				{".PKGINFO": "pkgname = apk-tools-static\n"},
				{
					"sbin/apk.static":                     "binary",
					"sbin/apk.static.SIGN.RSA." + testKey: "binsig",
				},
			},
		},
		{
			name: "signature missing",
			segments: []map[string]string{
				{"sbin/apk.static": "binary"},
			},
			err: chroot.ErrApkStaticInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			apk := filepath.Join(dir, "apk-tools-static.apk")
			require.NoError(t, os.WriteFile(apk, tarGzip(t, tt.segments...), 0o644))

			extracted, err := chroot.ExtractApkStatic(apk, dir)
			require.ErrorIs(t, err, tt.err)

			if tt.err != nil {
				return
			}

			assert.Equal(t, testKey, extracted.Key)

			binary, err := os.ReadFile(extracted.Binary)
			require.NoError(t, err)
			assert.Equal(t, "binary", string(binary))

			signature, err := os.ReadFile(extracted.Signature)
			require.NoError(t, err)
			assert.Equal(t, "binsig", string(signature))
		})
	}
}

func TestApkStatic(t *testing.T) {
	apk := tarGzip(t, map[string]string{
		"sbin/apk.static":                     "binary",
		"sbin/apk.static.SIGN.RSA." + testKey: "binsig",
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/alpine/edge/main/x86_64/apk-tools-static-2.14.4-r0.apk" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		_, _ = w.Write(apk)
	}))
	t.Cleanup(server.Close)

	tests := []struct {
		name    string
		version string
		output  string
		key     string
		err     error
	}{
		{
			name:    "valid",
			version: "2.14.4-r0",
			output:  "apk-tools 2.14.4, compiled for x86_64.\n",
			key:     testKey,
		},
		{
			name:    "too old",
			version: "2.10.4-r3",
			key:     testKey,
			err:     chroot.ErrApkStaticTooOld,
		},
		{
			name:    "unknown key",
			version: "2.14.4-r0",
			key:     "other.rsa.pub",
			err:     chroot.ErrUnknownKey,
		},
		{
			name:    "version mismatch",
			version: "2.14.4-r0",
			output:  "apk-tools 2.12.0, compiled for x86_64.\n",
			key:     testKey,
			err:     chroot.ErrApkStaticInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &run.Recorder{
				Handler: func(cmd run.Cmd) (run.Result, error) {
					if cmd.Args[len(cmd.Args)-1] == "--version" {
						return run.Result{Output: tt.output}, nil
					}

					return run.Result{}, nil
				},
			}
			manager := newManager(t, recorder)
			manager.MirrorAlpine = server.URL + "/alpine/"
			manager.HTTP = &pmhttp.Client{CacheDir: filepath.Join(manager.Work, "cache_http")}

			require.NoError(t, os.WriteFile(filepath.Join(manager.KeysDir, tt.key), nil, 0o644))

			index := tarGzip(t, map[string]string{
				"APKINDEX": "P:apk-tools-static\nV:" + tt.version + "\nA:x86_64\n\n",
			})
			indexPath := apkindex.CachePath(manager.Work, sys.X86_64, server.URL+"/alpine/edge/main")
			require.NoError(t, os.MkdirAll(filepath.Dir(indexPath), 0o755))
			require.NoError(t, os.WriteFile(indexPath, index, 0o644))

			err := manager.ApkStatic(t.Context())
			require.ErrorIs(t, err, tt.err)

			if tt.err != nil {
				assert.NoFileExists(t, manager.ApkStaticPath())
				return
			}

			assert.FileExists(t, manager.ApkStaticPath())
			assert.Equal(t, 1, countContaining(recorder.Lines(), "openssl dgst -sha1 -verify "+
				filepath.Join(manager.KeysDir, testKey)))
		})
	}
}
