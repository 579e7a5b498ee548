// Package mocks provides gomock implementations of the ports used by the sign-in flow.
//
// The mocks are generated with go.uber.org/mock and give tests a fluent API for setting up expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	accounts := mocks.NewMockAccountStore(ctrl)
//	accounts.EXPECT().RecordLogin(gomock.Any(), gomock.Any()).Return(result, nil)
package mocks

// Generate mocks for every port in internal/ports:
// TokenExchanger, IdentityResolver, AccountStore, UserDirectory, SessionStore
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=ports_mock.go github.com/commandcenter/inboxauth/internal/ports TokenExchanger,IdentityResolver,AccountStore,UserDirectory,SessionStore
