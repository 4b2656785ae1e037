// SPDX-License-Identifier: MPL-2.0

// Package config loads ambient orchestration settings (concurrency,
// default branch probe order, shallow clone depth, git timeout, entry
// suffix) from an XDG-located settings.toml, distinct from the package
// declaration ingesters in internal/ingest.
package config
