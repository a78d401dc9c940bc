package main

// Notifier blank imports — each import activates a self-registering adapter.

import (
	_ "github.com/openprocure/tenderd/internal/adapter/email"
)
