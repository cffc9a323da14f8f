package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/accounts/internal/core/domain"
	"github.com/99minutos/accounts/internal/infrastructure/crypto"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubUserRepo struct {
	users     map[string]*domain.User
	findErr   error // if set, FindByNormalizedEmail returns this error
	insertErr error // if set, InsertIfUniqueNormalizedEmail returns this error
	finds     []string
	inserted  []*domain.User
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubUserRepo) FindByNormalizedEmail(_ context.Context, email string) (*domain.User, error) {
	r.finds = append(r.finds, email)
	if r.findErr != nil {
		return nil, r.findErr
	}
	u, ok := r.users[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) InsertIfUniqueNormalizedEmail(_ context.Context, user *domain.User) (*domain.User, error) {
	if r.insertErr != nil {
		return nil, r.insertErr
	}
	if _, exists := r.users[user.Email]; exists {
		return nil, domain.ErrEmailTaken
	}
	stored := cloneUser(user)
	stored.ID = "user_" + user.Email
	r.users[stored.Email] = stored
	r.inserted = append(r.inserted, cloneUser(stored))
	return cloneUser(stored), nil
}

type countingHasher struct {
	*crypto.BcryptHasher
	hashes   int
	compares int
}

func (h *countingHasher) Hash(password string) (string, error) {
	h.hashes++
	return h.BcryptHasher.Hash(password)
}

func (h *countingHasher) Compare(hash, password string) bool {
	h.compares++
	return h.BcryptHasher.Compare(hash, password)
}

func newTestService(t *testing.T, repo *stubUserRepo) (*AccountService, *countingHasher) {
	t.Helper()
	hasher := &countingHasher{BcryptHasher: crypto.NewBcryptHasher(bcrypt.MinCost)}
	svc, err := NewAccountService(repo, hasher, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewAccountService returned error: %v", err)
	}
	return svc, hasher
}

func sean() domain.NewUserInput {
	return domain.NewUserInput{
		Name:                 "Sean",
		Email:                "sean@kim.com",
		Password:             "skim",
		PasswordConfirmation: "skim",
	}
}

func validationErrors(t *testing.T, err error) *domain.ValidationErrors {
	t.Helper()
	var verrs *domain.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected *domain.ValidationErrors, got %v", err)
	}
	return verrs
}

func contains(msgs []string, want string) bool {
	for _, m := range msgs {
		if m == want {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// CreateUser
// ---------------------------------------------------------------------------

func TestAccountService_CreateUser_Success(t *testing.T) {
	repo := newStubUserRepo()
	svc, _ := newTestService(t, repo)

	user, err := svc.CreateUser(context.Background(), sean())
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}
	if user == nil || user.ID == "" {
		t.Fatalf("expected persisted user with ID, got %+v", user)
	}
	if user.Name != "Sean" || user.Email != "sean@kim.com" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.PasswordHash == "" || user.PasswordHash == "skim" {
		t.Fatalf("expected password to be hashed, got %q", user.PasswordHash)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("skim")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
	if user.CreatedAt.IsZero() || !user.CreatedAt.Equal(user.UpdatedAt) {
		t.Fatalf("unexpected timestamps: %v / %v", user.CreatedAt, user.UpdatedAt)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("expected one insert, got %d", len(repo.inserted))
	}
}

func TestAccountService_CreateUser_NormalizesEmailAndName(t *testing.T) {
	repo := newStubUserRepo()
	svc, _ := newTestService(t, repo)

	in := sean()
	in.Name = "  Sean "
	in.Email = "  Sean@Kim.com "

	user, err := svc.CreateUser(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}
	if user.Email != "sean@kim.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if user.Name != "Sean" {
		t.Fatalf("expected trimmed name, got %q", user.Name)
	}
}

func TestAccountService_CreateUser_PasswordMismatch(t *testing.T) {
	repo := newStubUserRepo()
	svc, _ := newTestService(t, repo)

	in := sean()
	in.PasswordConfirmation = "skimm"

	user, err := svc.CreateUser(context.Background(), in)
	if user != nil {
		t.Fatalf("expected no user, got %+v", user)
	}
	verrs := validationErrors(t, err)
	if !verrs.Has(domain.FieldPasswordConfirmation, domain.ViolationConfirmation) {
		t.Fatalf("expected confirmation violation, got %+v", verrs.Violations)
	}
	if len(repo.inserted) != 0 {
		t.Fatalf("invalid user must not be persisted")
	}
}

func TestAccountService_CreateUser_ConfirmationIsExact(t *testing.T) {
	svc, _ := newTestService(t, newStubUserRepo())

	for _, confirmation := range []string{"SKIM", "skim ", ""} {
		in := sean()
		in.PasswordConfirmation = confirmation
		_, err := svc.CreateUser(context.Background(), in)
		verrs := validationErrors(t, err)
		if !verrs.Has(domain.FieldPasswordConfirmation, domain.ViolationConfirmation) {
			t.Fatalf("confirmation %q: expected mismatch, got %+v", confirmation, verrs.Violations)
		}
	}
}

func TestAccountService_CreateUser_DuplicateEmailCaseInsensitive(t *testing.T) {
	repo := newStubUserRepo()
	svc, _ := newTestService(t, repo)

	if _, err := svc.CreateUser(context.Background(), sean()); err != nil {
		t.Fatalf("first CreateUser failed: %v", err)
	}

	for _, email := range []string{"sean@kim.com", "SEAN@kim.com", " Sean@Kim.Com "} {
		in := sean()
		in.Email = email
		_, err := svc.CreateUser(context.Background(), in)
		verrs := validationErrors(t, err)
		if !verrs.Has(domain.FieldEmail, domain.ViolationTaken) {
			t.Fatalf("email %q: expected taken violation, got %+v", email, verrs.Violations)
		}
		if !contains(verrs.Messages(), "Email has already been taken") {
			t.Fatalf("unexpected messages: %v", verrs.Messages())
		}
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("expected exactly one persisted user, got %d", len(repo.inserted))
	}
}

func TestAccountService_CreateUser_MissingName(t *testing.T) {
	svc, _ := newTestService(t, newStubUserRepo())

	in := sean()
	in.Name = ""

	_, err := svc.CreateUser(context.Background(), in)
	verrs := validationErrors(t, err)
	if !contains(verrs.Messages(), "Name can't be blank") {
		t.Fatalf("expected blank name message, got %v", verrs.Messages())
	}
}

func TestAccountService_CreateUser_WhitespaceName(t *testing.T) {
	svc, _ := newTestService(t, newStubUserRepo())

	in := sean()
	in.Name = "   "

	_, err := svc.CreateUser(context.Background(), in)
	if !validationErrors(t, err).Has(domain.FieldName, domain.ViolationBlank) {
		t.Fatalf("expected whitespace-only name to be blank")
	}
}

func TestAccountService_CreateUser_MissingEmail(t *testing.T) {
	repo := newStubUserRepo()
	svc, _ := newTestService(t, repo)

	in := sean()
	in.Email = ""

	_, err := svc.CreateUser(context.Background(), in)
	verrs := validationErrors(t, err)
	if !contains(verrs.Messages(), "Email can't be blank") {
		t.Fatalf("expected blank email message, got %v", verrs.Messages())
	}
	if verrs.Has(domain.FieldEmail, domain.ViolationTaken) {
		t.Fatalf("blank email must not be reported as taken")
	}
	if len(repo.finds) != 0 {
		t.Fatalf("blank email should not hit storage, got lookups %v", repo.finds)
	}
}

func TestAccountService_CreateUser_PasswordTooShort(t *testing.T) {
	svc, _ := newTestService(t, newStubUserRepo())

	in := sean()
	in.Password = "sk"
	in.PasswordConfirmation = "sk"

	_, err := svc.CreateUser(context.Background(), in)
	verrs := validationErrors(t, err)
	if !contains(verrs.Messages(), "Password is too short (minimum is 3 characters)") {
		t.Fatalf("expected too short message, got %v", verrs.Messages())
	}
}

func TestAccountService_CreateUser_PasswordLengthCountsCharacters(t *testing.T) {
	svc, _ := newTestService(t, newStubUserRepo())

	// Three characters, six bytes.
	in := sean()
	in.Password = "ééé"
	in.PasswordConfirmation = "ééé"

	if _, err := svc.CreateUser(context.Background(), in); err != nil {
		t.Fatalf("expected three-character password to be accepted, got %v", err)
	}
}

func TestAccountService_CreateUser_PasswordTooLong(t *testing.T) {
	cases := map[string]string{
		"73 ascii bytes":         strings.Repeat("a", 73),
		"40 two-byte characters": strings.Repeat("é", 40),
	}
	for name, password := range cases {
		t.Run(name, func(t *testing.T) {
			repo := newStubUserRepo()
			svc, hasher := newTestService(t, repo)
			hashes := hasher.hashes

			in := sean()
			in.Password = password
			in.PasswordConfirmation = password

			_, err := svc.CreateUser(context.Background(), in)
			verrs := validationErrors(t, err)
			if !verrs.Has(domain.FieldPassword, domain.ViolationTooLong) || len(verrs.Violations) != 1 {
				t.Fatalf("expected only a too long violation, got %v", verrs.Messages())
			}
			if hasher.hashes != hashes || len(repo.inserted) != 0 {
				t.Fatalf("overlong password must not be hashed or persisted")
			}
		})
	}
}

func TestAccountService_CreateUser_PasswordAtByteLimit(t *testing.T) {
	svc, _ := newTestService(t, newStubUserRepo())

	in := sean()
	in.Password = strings.Repeat("é", 36)
	in.PasswordConfirmation = in.Password

	if _, err := svc.CreateUser(context.Background(), in); err != nil {
		t.Fatalf("expected 72-byte password to be accepted, got %v", err)
	}
}

func TestAccountService_CreateUser_TooLongAccumulatesWithMismatch(t *testing.T) {
	svc, _ := newTestService(t, newStubUserRepo())

	in := sean()
	in.Password = strings.Repeat("a", 80)
	in.PasswordConfirmation = "skim"

	_, err := svc.CreateUser(context.Background(), in)
	verrs := validationErrors(t, err)
	if !verrs.Has(domain.FieldPassword, domain.ViolationTooLong) || !verrs.Has(domain.FieldPasswordConfirmation, domain.ViolationConfirmation) {
		t.Fatalf("expected too long and mismatch together, got %v", verrs.Messages())
	}
}

func TestAccountService_CreateUser_AccumulatesViolations(t *testing.T) {
	repo := newStubUserRepo()
	svc, hasher := newTestService(t, repo)
	hashes := hasher.hashes

	_, err := svc.CreateUser(context.Background(), domain.NewUserInput{
		Password:             "sk",
		PasswordConfirmation: "skk",
	})
	verrs := validationErrors(t, err)

	want := []string{
		"Name can't be blank",
		"Email can't be blank",
		"Password is too short (minimum is 3 characters)",
		"Password confirmation doesn't match Password",
	}
	got := verrs.Messages()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected messages:\n got: %v\nwant: %v", got, want)
	}
	if hasher.hashes != hashes || len(repo.inserted) != 0 {
		t.Fatalf("invalid input must not be hashed or persisted")
	}
}

func TestAccountService_CreateUser_InsertRaceReportsTaken(t *testing.T) {
	repo := newStubUserRepo()
	repo.insertErr = domain.ErrEmailTaken
	svc, _ := newTestService(t, repo)

	_, err := svc.CreateUser(context.Background(), sean())
	if !validationErrors(t, err).Has(domain.FieldEmail, domain.ViolationTaken) {
		t.Fatalf("expected taken violation from insert race")
	}
}

func TestAccountService_CreateUser_StorageFailurePropagates(t *testing.T) {
	storageErr := errors.New("connection refused")

	t.Run("lookup", func(t *testing.T) {
		repo := newStubUserRepo()
		repo.findErr = storageErr
		svc, _ := newTestService(t, repo)

		_, err := svc.CreateUser(context.Background(), sean())
		if !errors.Is(err, storageErr) {
			t.Fatalf("expected storage error, got %v", err)
		}
		var verrs *domain.ValidationErrors
		if errors.As(err, &verrs) {
			t.Fatalf("storage failure must not be reported as validation failure")
		}
	})

	t.Run("insert", func(t *testing.T) {
		repo := newStubUserRepo()
		repo.insertErr = storageErr
		svc, _ := newTestService(t, repo)

		_, err := svc.CreateUser(context.Background(), sean())
		if !errors.Is(err, storageErr) {
			t.Fatalf("expected storage error, got %v", err)
		}
	})
}

// ---------------------------------------------------------------------------
// AuthenticateWithCredentials
// ---------------------------------------------------------------------------

func seededService(t *testing.T) (*AccountService, *stubUserRepo, *countingHasher) {
	t.Helper()
	repo := newStubUserRepo()
	svc, hasher := newTestService(t, repo)
	if _, err := svc.CreateUser(context.Background(), sean()); err != nil {
		t.Fatalf("seed CreateUser failed: %v", err)
	}
	return svc, repo, hasher
}

func TestAccountService_Authenticate(t *testing.T) {
	svc, _, _ := seededService(t)

	cases := []struct {
		name     string
		email    string
		password string
		want     bool
	}{
		{"exact credentials", "sean@kim.com", "skim", true},
		{"case insensitive email", "SeAn@kIm.com", "skim", true},
		{"spaces around email", "  sean@kim.com ", "skim", true},
		{"wrong password", "sean@kim.com", "skimm", false},
		{"password is case sensitive", "sean@kim.com", "SKIM", false},
		{"password is not trimmed", "sean@kim.com", " skim ", false},
		{"unknown email", "nonexistent@x.com", "skim", false},
		{"empty email", "", "skim", false},
		{"whitespace email", "   ", "skim", false},
		{"empty password", "sean@kim.com", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.AuthenticateWithCredentials(context.Background(), tc.email, tc.password)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("AuthenticateWithCredentials(%q, %q) = %v, want %v", tc.email, tc.password, got, tc.want)
			}
		})
	}
}

func TestAccountService_Authenticate_LooksUpNormalizedEmail(t *testing.T) {
	svc, repo, _ := seededService(t)
	repo.finds = nil

	if _, err := svc.AuthenticateWithCredentials(context.Background(), "  SEAN@Kim.com\t", "skim"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.finds) != 1 || repo.finds[0] != "sean@kim.com" {
		t.Fatalf("expected lookup by normalized email, got %v", repo.finds)
	}
}

func TestAccountService_Authenticate_UnknownEmailStillComparesHash(t *testing.T) {
	svc, _, hasher := seededService(t)
	before := hasher.compares

	ok, err := svc.AuthenticateWithCredentials(context.Background(), "ghost@example.com", "skim")
	if err != nil || ok {
		t.Fatalf("expected false, nil; got %v, %v", ok, err)
	}
	if hasher.compares != before+1 {
		t.Fatalf("expected one hash comparison for unknown email, got %d", hasher.compares-before)
	}
}

func TestAccountService_Authenticate_StorageFailure(t *testing.T) {
	svc, repo, _ := seededService(t)
	storageErr := errors.New("mongo: server selection timeout")
	repo.findErr = storageErr

	ok, err := svc.AuthenticateWithCredentials(context.Background(), "sean@kim.com", "skim")
	if ok {
		t.Fatalf("expected false on storage failure")
	}
	if !errors.Is(err, storageErr) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestAccountService_Authenticate_Argon2(t *testing.T) {
	repo := newStubUserRepo()
	hasher := crypto.NewArgon2Hasher(crypto.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16})
	svc, err := NewAccountService(repo, hasher, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewAccountService returned error: %v", err)
	}

	if _, err := svc.CreateUser(context.Background(), sean()); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if ok, _ := svc.AuthenticateWithCredentials(context.Background(), "Sean@Kim.com", "skim"); !ok {
		t.Fatalf("expected argon2id-backed authentication to succeed")
	}
	if ok, _ := svc.AuthenticateWithCredentials(context.Background(), "sean@kim.com", "nope"); ok {
		t.Fatalf("expected wrong password to fail")
	}
}
