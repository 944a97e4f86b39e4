// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package cascade

// Retry exposes the backoff loop for white-box tests.
var Retry = retry
