// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"fmt"
	"os"

	"github.com/wingedpig/launchpad/internal/config"
)

// CheckTLSConfig reports whether HTTPS should be served. Setting only one of
// cert and key, or naming a missing file, is an error.
func CheckTLSConfig(certPath, keyPath string) (bool, error) {
	if certPath == "" && keyPath == "" {
		return false, nil
	}
	if certPath == "" || keyPath == "" {
		return false, fmt.Errorf("both tls_cert and tls_key must be specified (got cert=%q, key=%q)", certPath, keyPath)
	}

	for field, path := range map[string]string{"tls_cert": certPath, "tls_key": keyPath} {
		if _, err := os.Stat(config.ExpandHome(path)); err != nil {
			return false, fmt.Errorf("%s file not found: %s", field, path)
		}
	}
	return true, nil
}
