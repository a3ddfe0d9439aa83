// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package flow

import (
	"slices"
	"strings"
)

// ScopeGuild is the scope token that opts a client into guild membership
// claims. Without it, membership is never checked and the related claims are
// omitted from id tokens and userinfo responses.
const ScopeGuild = "guild"

// ParseScopes splits a space-delimited scope string into tokens, dropping
// empty entries and duplicates. Order is preserved.
func ParseScopes(scope string) []string {
	fields := strings.Fields(scope)
	scopes := make([]string, 0, len(fields))
	for _, s := range fields {
		if !slices.Contains(scopes, s) {
			scopes = append(scopes, s)
		}
	}
	return scopes
}

// HasGuildScope reports whether the parsed scope list includes the guild scope.
func HasGuildScope(scopes []string) bool {
	return slices.Contains(scopes, ScopeGuild)
}
