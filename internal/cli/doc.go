// SPDX-License-Identifier: MPL-2.0

// Package cli contains the packksh CLI commands: install, update, remove,
// list, freeze, restore, info, diff, path, run, self-update, version,
// help, and the supplementary doctor command.
package cli
