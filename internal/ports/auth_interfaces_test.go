package ports_test

import (
	"testing"

	"github.com/target/gatekeeper/internal/adapters/passwordhash"
	"github.com/target/gatekeeper/internal/adapters/ratelimit"
	redisadapter "github.com/target/gatekeeper/internal/adapters/redis"
	"github.com/target/gatekeeper/internal/adapters/sessiontoken"
	"github.com/target/gatekeeper/internal/clock"
	"github.com/target/gatekeeper/internal/data"
	"github.com/target/gatekeeper/internal/mocks"
	mockauth "github.com/target/gatekeeper/internal/mocks/auth"
	"github.com/target/gatekeeper/internal/ports"
)

// This test only verifies that adapters and doubles conform to the ports at compile time.
func TestImplementationsSatisfyPorts(t *testing.T) {
	t.Helper()

	var _ ports.UserRepository = (*data.UserRepo)(nil)
	var _ ports.UserRepository = (*mockauth.MemoryUserStore)(nil)
	var _ ports.UserRepository = (*mocks.MockUserRepository)(nil)
	var _ ports.UserStore = (*mocks.MockUserStore)(nil)

	var _ ports.PasswordHasher = (*passwordhash.Hasher)(nil)
	var _ ports.PasswordHasher = (*mockauth.StubHasher)(nil)

	var _ ports.TokenCodec = (*sessiontoken.Codec)(nil)

	var _ ports.TokenRevocations = (*redisadapter.RevocationStore)(nil)
	var _ ports.TokenRevocations = (*mockauth.MemoryRevocations)(nil)
	var _ ports.TokenRevocations = (*mocks.MockTokenRevocations)(nil)

	var _ ports.AdmissionStore = (*ratelimit.MemoryStore)(nil)
	var _ ports.AdmissionStore = (*redisadapter.AdmissionStore)(nil)
	var _ ports.AdmissionStore = (*mocks.MockAdmissionStore)(nil)

	var _ ports.Clock = clock.Real{}
	var _ ports.Clock = (*clock.Fixed)(nil)
}
