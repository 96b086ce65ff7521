// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/wingedpig/launchpad/internal/config"
)

// ExtractURL finds the public URL in a tunnel agent's API response. It
// understands the ngrok tunnels list (https entries preferred), flat
// public_url / url fields, and the cloudflared quick tunnel hostname.
func ExtractURL(body []byte) (string, bool) {
	if !gjson.ValidBytes(body) {
		return "", false
	}
	doc := gjson.ParseBytes(body)

	if tunnels := doc.Get("tunnels"); tunnels.IsArray() {
		if u := tunnels.Get(`#(proto=="https").public_url`).String(); isPublicURL(u) {
			return u, true
		}
		for _, t := range tunnels.Array() {
			if u := t.Get("public_url").String(); isPublicURL(u) {
				return u, true
			}
		}
	}

	for _, path := range []string{"public_url", "url"} {
		if u := doc.Get(path).String(); isPublicURL(u) {
			return u, true
		}
	}

	if host := strings.TrimSpace(doc.Get("hostname").String()); host != "" {
		if !strings.Contains(host, "://") {
			host = "https://" + host
		}
		if isPublicURL(host) {
			return host, true
		}
	}
	return "", false
}

func isPublicURL(u string) bool {
	return strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "http://")
}

// ApplyTemplate substitutes the captured URL into tmpl.
func ApplyTemplate(tmpl, url string) string {
	if tmpl == "" {
		tmpl = config.URLPlaceholder
	}
	return strings.ReplaceAll(tmpl, config.URLPlaceholder, url)
}

// Well-known agent API endpoints.
const (
	NgrokAPIURL            = "http://127.0.0.1:4040/api/tunnels"
	DefaultCloudflaredAddr = "127.0.0.1:20241"
)

var (
	ngrokWord       = regexp.MustCompile(`(^|[\s/;&|])ngrok(\s|$)`)
	cloudflaredWord = regexp.MustCompile(`(^|[\s/;&|])cloudflared(\s|$)`)
	metricsFlag     = regexp.MustCompile(`--metrics[=\s]+(\S+)`)
)

// Detect recognizes a tunnel agent in command and returns a monitoring
// config that polls its local API.
func Detect(command string) (*config.MonitoringConfig, bool) {
	switch {
	case ngrokWord.MatchString(command):
		return &config.MonitoringConfig{
			Enabled:     true,
			Type:        "ngrok",
			APIURL:      NgrokAPIURL,
			URLTemplate: config.URLPlaceholder,
		}, true
	case cloudflaredWord.MatchString(command):
		addr := DefaultCloudflaredAddr
		if m := metricsFlag.FindStringSubmatch(command); m != nil {
			addr = m[1]
			if strings.HasPrefix(addr, ":") {
				addr = "127.0.0.1" + addr
			} else if strings.HasPrefix(addr, "localhost:") {
				addr = "127.0.0.1" + strings.TrimPrefix(addr, "localhost")
			}
		}
		return &config.MonitoringConfig{
			Enabled:     true,
			Type:        "cloudflared",
			APIURL:      "http://" + addr + "/quicktunnel",
			URLTemplate: config.URLPlaceholder,
		}, true
	}
	return nil, false
}
