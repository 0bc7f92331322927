package main

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    options
		wantErr bool
	}{
		{
			name: "defaults",
			args: nil,
			want: options{latest: 2, timeout: time.Hour},
		},
		{
			name: "explicit periods",
			args: []string{"-periods", "1131, 1132,113X", "-publish"},
			want: options{periods: []string{"1131", "1132", "113X"}, latest: 2, timeout: time.Hour, publish: true},
		},
		{
			name: "invalid codes dropped",
			args: []string{"-periods", "1131,abc"},
			want: options{periods: []string{"1131"}, latest: 2, timeout: time.Hour},
		},
		{
			name:    "no valid period",
			args:    []string{"-periods", "abc"},
			wantErr: true,
		},
		{
			name:    "latest must be positive",
			args:    []string{"-latest", "0"},
			wantErr: true,
		},
		{
			name: "custom timeout",
			args: []string{"-latest", "4", "-timeout", "10m"},
			want: options{latest: 4, timeout: 10 * time.Minute},
		},
		{
			name:    "unknown flag",
			args:    []string{"-modules", "id"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFlags(tt.args, 2, io.Discard)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
