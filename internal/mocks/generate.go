// Package mocks holds gomock implementations of service interfaces.
//
// Regenerate after interface changes with:
//
//	go generate ./internal/mocks
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.4.0 -package=mocks -destination=sender_mock.go emis/internal/mail Sender
