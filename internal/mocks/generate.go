// Package mocks provides gomock implementations of the auth ports.
//
// To regenerate after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	users := mocks.NewMockUserStore(ctrl)
//	users.EXPECT().FindByIdentifier(gomock.Any(), "alice@example.com").Return(rec, nil)
package mocks

// FindByIdentifier, RecordLogin and the admin management methods.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=user_store_mock.go github.com/target/gatekeeper/internal/ports UserStore,UserRepository

// Logout revocation list.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=token_revocations_mock.go github.com/target/gatekeeper/internal/ports TokenRevocations

// Token-bucket store behind the admission controller.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=admission_store_mock.go github.com/target/gatekeeper/internal/ports AdmissionStore
