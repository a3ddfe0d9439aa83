// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

// version is injected at build time via -ldflags.
var version = "dev"

func getVersion() string {
	return version
}
