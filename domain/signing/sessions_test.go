package signing_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"io/ioutil"
	"log"
	"sync"
	"testing"
	"time"

	"contraflow/bizerror"
	"contraflow/client/s3"
	"contraflow/docrender"
	"contraflow/domain"
	"contraflow/domain/signing"
	"contraflow/event"
	"contraflow/notify"
	"contraflow/persistence"
	"contraflow/session"
	"contraflow/testinfra"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/gomega"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nfakeimagedata")

type fakeBlobStore struct {
	mutex sync.Mutex
	blobs map[string][]byte
}

func installFakeBlobStore() *fakeBlobStore {
	store := &fakeBlobStore{blobs: map[string][]byte{}}
	s3.GetObjectFunc = func(key string, s *session.Session, opts ...oss.Option) (io.ReadCloser, error) {
		store.mutex.Lock()
		defer store.mutex.Unlock()
		content, found := store.blobs[key]
		if !found {
			return nil, bizerror.ErrSourceDocumentMissing
		}
		return ioutil.NopCloser(bytes.NewReader(content)), nil
	}
	s3.PutObjectFunc = func(key string, r io.Reader, s *session.Session, opts ...oss.Option) error {
		content, err := ioutil.ReadAll(r)
		if err != nil {
			return err
		}
		store.mutex.Lock()
		defer store.mutex.Unlock()
		store.blobs[key] = content
		return nil
	}
	return store
}

func (s *fakeBlobStore) put(key string, content []byte) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.blobs[key] = content
}

func (s *fakeBlobStore) get(key string) []byte {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.blobs[key]
}

func setup(t *testing.T) *testinfra.TestDatabase {
	testDatabase := testinfra.StartMysqlTestDatabase("contraflow")
	persistence.ActiveDataSourceManager = testDatabase.DS
	err := testDatabase.DS.GormDB(context.Background()).AutoMigrate(
		&domain.Contract{}, &session.User{},
		&signing.SigningSession{}, &signing.SigningSessionSigner{},
		&signing.SigningField{}, &signing.SigningAuditLog{}, &event.EventRecord{}).Error
	if err != nil {
		log.Fatalf("database migration failed %v\n", err)
	}
	notify.SendFunc = func(recipient, subject, body string) error { return nil }
	return testDatabase
}

func prepareContract(store *fakeBlobStore, title string, sec *session.Session) *domain.Contract {
	source := []byte("source document of " + title)
	store.put("contracts/"+title+".pdf", source)
	contract, err := domain.CreateContract(&domain.ContractCreation{
		Title: title, ContractType: "service", EntityID: types.ID(100),
		StoragePath: "contracts/" + title + ".pdf"}, sec)
	Expect(err).To(BeNil())
	return contract
}

func twoSignerCreation(contractID types.ID, order string) *signing.SessionCreation {
	return &signing.SessionCreation{
		ContractID:   contractID,
		SigningOrder: order,
		Signers: []signing.SignerSpec{
			{Name: "Alice", Email: "alice@acme.test", Order: 0},
			{Name: "Bob", Email: "bob@acme.test", Order: 1},
		},
	}
}

func captureDemo() *signing.SignatureCapture {
	return &signing.SignatureCapture{
		SignatureImageBase64: base64.StdEncoding.EncodeToString(pngBytes),
		SignatureMethod:      "draw",
	}
}

func TestCreateSession(t *testing.T) {
	RegisterTestingT(t)

	testDatabase := setup(t)
	defer testinfra.StopMysqlTestDatabase(testDatabase)
	store := installFakeBlobStore()

	sec := testinfra.BuildSecCtx(types.ID(1), domain.RoleContractManager)

	t.Run("should fingerprint the source document and build stable signer orders", func(t *testing.T) {
		contract := prepareContract(store, "alpha", sec)

		detail, err := signing.CreateSession(twoSignerCreation(contract.ID, signing.OrderSequential), sec)
		Expect(err).To(BeNil())
		Expect(detail.Status).To(Equal(signing.SessionStatusActive))
		Expect(detail.DocumentHash).To(Equal(docrender.Hash(store.get(contract.StoragePath))))
		Expect(detail.ExpiresAt.Time().After(time.Now().Add(29 * 24 * time.Hour))).To(BeTrue())
		Expect(len(detail.Signers)).To(Equal(2))
		Expect(detail.Signers[0].SigningOrder).To(Equal(0))
		Expect(detail.Signers[0].Status).To(Equal(signing.SignerStatusPending))
		Expect(detail.Signers[1].SigningOrder).To(Equal(1))
	})

	t.Run("explicit signer orders are honored, including zero at a later position", func(t *testing.T) {
		contract := prepareContract(store, "orders", sec)
		detail, err := signing.CreateSession(&signing.SessionCreation{
			ContractID:   contract.ID,
			SigningOrder: signing.OrderSequential,
			Signers: []signing.SignerSpec{
				{Name: "Bob", Email: "bob@acme.test", Order: 1},
				{Name: "Alice", Email: "alice@acme.test", Order: 0},
			},
		}, sec)
		Expect(err).To(BeNil())

		orderByName := map[string]int{}
		for _, s := range detail.Signers {
			orderByName[s.Name] = s.SigningOrder
		}
		Expect(orderByName["Bob"]).To(Equal(1))
		Expect(orderByName["Alice"]).To(Equal(0))
	})

	t.Run("signers without any order get their list position", func(t *testing.T) {
		contract := prepareContract(store, "autoorder", sec)
		detail, err := signing.CreateSession(&signing.SessionCreation{
			ContractID:   contract.ID,
			SigningOrder: signing.OrderSequential,
			Signers: []signing.SignerSpec{
				{Name: "Alice", Email: "alice@acme.test"},
				{Name: "Bob", Email: "bob@acme.test"},
			},
		}, sec)
		Expect(err).To(BeNil())
		Expect(detail.Signers[0].SigningOrder).To(Equal(0))
		Expect(detail.Signers[1].SigningOrder).To(Equal(1))
	})

	t.Run("should fail without a retrievable source document", func(t *testing.T) {
		contract, err := domain.CreateContract(&domain.ContractCreation{
			Title: "empty", ContractType: "service", EntityID: types.ID(100)}, sec)
		Expect(err).To(BeNil())

		_, err = signing.CreateSession(twoSignerCreation(contract.ID, signing.OrderSequential), sec)
		Expect(err).To(Equal(bizerror.ErrSourceDocumentMissing))
	})
}

func TestTokenLifecycle(t *testing.T) {
	RegisterTestingT(t)

	testDatabase := setup(t)
	defer testinfra.StopMysqlTestDatabase(testDatabase)
	store := installFakeBlobStore()

	sec := testinfra.BuildSecCtx(types.ID(1), domain.RoleContractManager)
	ctx := context.Background()
	meta := signing.RequestMeta{IPAddress: "10.0.0.9", UserAgent: "test-agent"}

	t.Run("the raw token is returned once and only its digest is stored", func(t *testing.T) {
		contract := prepareContract(store, "token", sec)
		detail, err := signing.CreateSession(twoSignerCreation(contract.ID, signing.OrderSequential), sec)
		Expect(err).To(BeNil())

		rawToken, err := signing.SendToSigner(detail.Signers[0].ID, sec)
		Expect(err).To(BeNil())
		Expect(rawToken).ToNot(BeEmpty())

		stored := signing.SigningSessionSigner{}
		db := testDatabase.DS.GormDB(ctx)
		Expect(db.Where("id = ?", detail.Signers[0].ID).First(&stored).Error).To(BeNil())
		Expect(stored.Token).ToNot(BeEmpty())
		Expect(stored.Token).ToNot(Equal(rawToken))
		Expect(stored.Status).To(Equal(signing.SignerStatusSent))
		Expect(stored.SentAt.Time().IsZero()).To(BeFalse())

		signer, err := signing.ValidateToken(ctx, rawToken, meta)
		Expect(err).To(BeNil())
		Expect(signer.ID).To(Equal(detail.Signers[0].ID))
	})

	t.Run("validation stamps the view time once", func(t *testing.T) {
		contract := prepareContract(store, "viewonce", sec)
		detail, err := signing.CreateSession(twoSignerCreation(contract.ID, signing.OrderSequential), sec)
		Expect(err).To(BeNil())
		rawToken, err := signing.SendToSigner(detail.Signers[0].ID, sec)
		Expect(err).To(BeNil())

		first, err := signing.ValidateToken(ctx, rawToken, meta)
		Expect(err).To(BeNil())
		Expect(first.Status).To(Equal(signing.SignerStatusViewed))
		Expect(first.ViewedAt.Time().IsZero()).To(BeFalse())

		second, err := signing.ValidateToken(ctx, rawToken, meta)
		Expect(err).To(BeNil())
		Expect(second.ViewedAt.Time().Equal(first.ViewedAt.Time())).To(BeTrue())

		db := testDatabase.DS.GormDB(ctx)
		var viewedAudits int
		Expect(db.Model(&signing.SigningAuditLog{}).
			Where("session_id = ? AND event = ?", detail.ID, signing.AuditViewed).
			Count(&viewedAudits).Error).To(BeNil())
		Expect(viewedAudits).To(Equal(1))
	})

	t.Run("an unknown token fails InvalidToken, an expired one TokenExpired", func(t *testing.T) {
		contract := prepareContract(store, "expiry", sec)
		detail, err := signing.CreateSession(twoSignerCreation(contract.ID, signing.OrderSequential), sec)
		Expect(err).To(BeNil())
		rawToken, err := signing.SendToSigner(detail.Signers[0].ID, sec)
		Expect(err).To(BeNil())

		_, err = signing.ValidateToken(ctx, "deadbeef", meta)
		Expect(err).To(Equal(bizerror.ErrInvalidToken))

		db := testDatabase.DS.GormDB(ctx)
		Expect(db.Model(&signing.SigningSessionSigner{}).Where("id = ?", detail.Signers[0].ID).
			Update("token_expires_at", types.Timestamp(time.Now().Add(-time.Hour))).Error).To(BeNil())

		_, err = signing.ValidateToken(ctx, rawToken, meta)
		Expect(err).To(Equal(bizerror.ErrTokenExpired))
	})

	t.Run("a reminder issues a fresh token and invalidates the previous link", func(t *testing.T) {
		contract := prepareContract(store, "reminder", sec)
		detail, err := signing.CreateSession(twoSignerCreation(contract.ID, signing.OrderSequential), sec)
		Expect(err).To(BeNil())
		oldToken, err := signing.SendToSigner(detail.Signers[0].ID, sec)
		Expect(err).To(BeNil())

		newToken, err := signing.SendReminder(detail.Signers[0].ID, sec)
		Expect(err).To(BeNil())
		Expect(newToken).ToNot(Equal(oldToken))

		_, err = signing.ValidateToken(ctx, oldToken, meta)
		Expect(err).To(Equal(bizerror.ErrInvalidToken))
		_, err = signing.ValidateToken(ctx, newToken, meta)
		Expect(err).To(BeNil())
	})

	t.Run("an expired session is flipped lazily on validation", func(t *testing.T) {
		contract := prepareContract(store, "lazyexpiry", sec)
		detail, err := signing.CreateSession(twoSignerCreation(contract.ID, signing.OrderSequential), sec)
		Expect(err).To(BeNil())
		rawToken, err := signing.SendToSigner(detail.Signers[0].ID, sec)
		Expect(err).To(BeNil())

		db := testDatabase.DS.GormDB(ctx)
		Expect(db.Model(&signing.SigningSession{}).Where("id = ?", detail.ID).
			Update("expires_at", types.Timestamp(time.Now().Add(-time.Hour))).Error).To(BeNil())

		_, err = signing.ValidateToken(ctx, rawToken, meta)
		Expect(err).To(Equal(bizerror.ErrSessionInactive))

		stored := signing.SigningSession{}
		Expect(db.Where("id = ?", detail.ID).First(&stored).Error).To(BeNil())
		Expect(stored.Status).To(Equal(signing.SessionStatusExpired))
	})
}

func TestSequentialSigning(t *testing.T) {
	RegisterTestingT(t)

	testDatabase := setup(t)
	defer testinfra.StopMysqlTestDatabase(testDatabase)
	store := installFakeBlobStore()

	sec := testinfra.BuildSecCtx(types.ID(1), domain.RoleContractManager)
	ctx := context.Background()
	meta := signing.RequestMeta{IPAddress: "10.0.0.9", UserAgent: "test-agent"}

	t.Run("advance sends to the next signer and completes only after all signed", func(t *testing.T) {
		var sentTokens []string
		notify.SendFunc = func(recipient, subject, body string) error {
			sentTokens = append(sentTokens, body)
			return nil
		}

		contract := prepareContract(store, "sequential", sec)
		detail, err := signing.CreateSession(twoSignerCreation(contract.ID, signing.OrderSequential), sec)
		Expect(err).To(BeNil())
		alice, bob := detail.Signers[0], detail.Signers[1]

		aliceToken, err := signing.SendToSigner(alice.ID, sec)
		Expect(err).To(BeNil())

		_, err = signing.CaptureSignature(ctx, aliceToken, captureDemo(), meta)
		Expect(err).To(BeNil())

		// first advance must move to Bob, not complete
		Expect(signing.AdvanceSession(detail.ID, sec)).To(BeNil())
		db := testDatabase.DS.GormDB(ctx)
		current := signing.SigningSession{}
		Expect(db.Where("id = ?", detail.ID).First(&current).Error).To(BeNil())
		Expect(current.Status).To(Equal(signing.SessionStatusActive))

		storedBob := signing.SigningSessionSigner{}
		Expect(db.Where("id = ?", bob.ID).First(&storedBob).Error).To(BeNil())
		Expect(storedBob.Status).To(Equal(signing.SignerStatusSent))
		Expect(storedBob.Token).ToNot(BeEmpty())

		// second advance with Bob still unsigned stays put
		Expect(signing.AdvanceSession(detail.ID, sec)).To(BeNil())
		Expect(db.Where("id = ?", detail.ID).First(&current).Error).To(BeNil())
		Expect(current.Status).To(Equal(signing.SessionStatusActive))

		bobToken, err := signing.SendReminder(bob.ID, sec)
		Expect(err).To(BeNil())
		_, err = signing.CaptureSignature(ctx, bobToken, captureDemo(), meta)
		Expect(err).To(BeNil())

		Expect(signing.AdvanceSession(detail.ID, sec)).To(BeNil())
		Expect(db.Where("id = ?", detail.ID).First(&current).Error).To(BeNil())
		Expect(current.Status).To(Equal(signing.SessionStatusCompleted))
		Expect(current.CompletedAt.Time().IsZero()).To(BeFalse())
		Expect(current.FinalStoragePath).ToNot(BeEmpty())

		sealed := store.get(current.FinalStoragePath)
		Expect(sealed).ToNot(BeEmpty())
		Expect(current.FinalDocumentHash).To(Equal(docrender.Hash(sealed)))

		signedContract := domain.Contract{}
		Expect(db.Where("id = ?", contract.ID).First(&signedContract).Error).To(BeNil())
		Expect(signedContract.SigningStatus).To(Equal(domain.SigningStatusSigned))
	})

	t.Run("a completed session cannot be finalized again", func(t *testing.T) {
		contract := prepareContract(store, "refinalize", sec)
		detail, err := signing.CreateSession(&signing.SessionCreation{
			ContractID:   contract.ID,
			SigningOrder: signing.OrderSequential,
			Signers:      []signing.SignerSpec{{Name: "Alice", Email: "alice@acme.test"}},
		}, sec)
		Expect(err).To(BeNil())

		rawToken, err := signing.SendToSigner(detail.Signers[0].ID, sec)
		Expect(err).To(BeNil())
		_, err = signing.CaptureSignature(ctx, rawToken, captureDemo(), meta)
		Expect(err).To(BeNil())

		// the public flow advances without an authenticated caller
		Expect(signing.AdvanceSessionCtx(ctx, detail.ID)).To(BeNil())
		Expect(signing.AdvanceSession(detail.ID, sec)).To(Equal(bizerror.ErrSessionInactive))

		db := testDatabase.DS.GormDB(ctx)
		var completedAudits int
		Expect(db.Model(&signing.SigningAuditLog{}).
			Where("session_id = ? AND event = ?", detail.ID, signing.AuditCompleted).
			Count(&completedAudits).Error).To(BeNil())
		Expect(completedAudits).To(Equal(1))
	})

	t.Run("a second capture for a signed signer fails AlreadySigned", func(t *testing.T) {
		contract := prepareContract(store, "recapture", sec)
		detail, err := signing.CreateSession(twoSignerCreation(contract.ID, signing.OrderSequential), sec)
		Expect(err).To(BeNil())

		rawToken, err := signing.SendToSigner(detail.Signers[0].ID, sec)
		Expect(err).To(BeNil())
		_, err = signing.CaptureSignature(ctx, rawToken, captureDemo(), meta)
		Expect(err).To(BeNil())

		_, err = signing.CaptureSignature(ctx, rawToken, captureDemo(), meta)
		Expect(err).To(Equal(bizerror.ErrAlreadySigned))

		_, err = signing.SendToSigner(detail.Signers[0].ID, sec)
		Expect(err).To(Equal(bizerror.ErrAlreadySigned))
	})

	t.Run("a non-image payload fails InvalidSignature", func(t *testing.T) {
		contract := prepareContract(store, "badimage", sec)
		detail, err := signing.CreateSession(twoSignerCreation(contract.ID, signing.OrderSequential), sec)
		Expect(err).To(BeNil())
		rawToken, err := signing.SendToSigner(detail.Signers[0].ID, sec)
		Expect(err).To(BeNil())

		_, err = signing.CaptureSignature(ctx, rawToken, &signing.SignatureCapture{
			SignatureImageBase64: base64.StdEncoding.EncodeToString([]byte("just text"))}, meta)
		Expect(err).To(Equal(bizerror.ErrInvalidSignature))

		_, err = signing.CaptureSignature(ctx, rawToken, &signing.SignatureCapture{
			SignatureImageBase64: "%%%not-base64%%%"}, meta)
		Expect(err).To(Equal(bizerror.ErrInvalidSignature))
	})

	t.Run("a tampered source document blocks completion", func(t *testing.T) {
		contract := prepareContract(store, "tampered", sec)
		detail, err := signing.CreateSession(&signing.SessionCreation{
			ContractID:   contract.ID,
			SigningOrder: signing.OrderSequential,
			Signers:      []signing.SignerSpec{{Name: "Alice", Email: "alice@acme.test"}},
		}, sec)
		Expect(err).To(BeNil())

		rawToken, err := signing.SendToSigner(detail.Signers[0].ID, sec)
		Expect(err).To(BeNil())
		_, err = signing.CaptureSignature(ctx, rawToken, captureDemo(), meta)
		Expect(err).To(BeNil())

		store.put(contract.StoragePath, []byte("replaced content"))

		Expect(signing.AdvanceSession(detail.ID, sec)).To(Equal(bizerror.ErrDocumentTampered))
	})
}

func TestParallelSigning(t *testing.T) {
	RegisterTestingT(t)

	testDatabase := setup(t)
	defer testinfra.StopMysqlTestDatabase(testDatabase)
	store := installFakeBlobStore()

	sec := testinfra.BuildSecCtx(types.ID(1), domain.RoleContractManager)
	ctx := context.Background()
	meta := signing.RequestMeta{}

	t.Run("completion requires every signer", func(t *testing.T) {
		contract := prepareContract(store, "parallel", sec)
		detail, err := signing.CreateSession(twoSignerCreation(contract.ID, signing.OrderParallel), sec)
		Expect(err).To(BeNil())

		aliceToken, err := signing.SendToSigner(detail.Signers[0].ID, sec)
		Expect(err).To(BeNil())
		bobToken, err := signing.SendToSigner(detail.Signers[1].ID, sec)
		Expect(err).To(BeNil())

		_, err = signing.CaptureSignature(ctx, aliceToken, captureDemo(), meta)
		Expect(err).To(BeNil())

		Expect(signing.AdvanceSession(detail.ID, sec)).To(BeNil())
		db := testDatabase.DS.GormDB(ctx)
		current := signing.SigningSession{}
		Expect(db.Where("id = ?", detail.ID).First(&current).Error).To(BeNil())
		Expect(current.Status).To(Equal(signing.SessionStatusActive))

		_, err = signing.CaptureSignature(ctx, bobToken, captureDemo(), meta)
		Expect(err).To(BeNil())
		Expect(signing.AdvanceSession(detail.ID, sec)).To(BeNil())
		Expect(db.Where("id = ?", detail.ID).First(&current).Error).To(BeNil())
		Expect(current.Status).To(Equal(signing.SessionStatusCompleted))
	})
}

func TestDeclineAndCancel(t *testing.T) {
	RegisterTestingT(t)

	testDatabase := setup(t)
	defer testinfra.StopMysqlTestDatabase(testDatabase)
	store := installFakeBlobStore()

	sec := testinfra.BuildSecCtx(types.ID(1), domain.RoleContractManager)
	ctx := context.Background()
	meta := signing.RequestMeta{}

	t.Run("a single decline cancels the whole session for all parties", func(t *testing.T) {
		contract := prepareContract(store, "decline", sec)
		detail, err := signing.CreateSession(twoSignerCreation(contract.ID, signing.OrderParallel), sec)
		Expect(err).To(BeNil())

		aliceToken, err := signing.SendToSigner(detail.Signers[0].ID, sec)
		Expect(err).To(BeNil())
		bobToken, err := signing.SendToSigner(detail.Signers[1].ID, sec)
		Expect(err).To(BeNil())

		Expect(signing.Decline(ctx, aliceToken, "terms unacceptable", meta)).To(BeNil())

		db := testDatabase.DS.GormDB(ctx)
		current := signing.SigningSession{}
		Expect(db.Where("id = ?", detail.ID).First(&current).Error).To(BeNil())
		Expect(current.Status).To(Equal(signing.SessionStatusCancelled))

		_, err = signing.ValidateToken(ctx, bobToken, meta)
		Expect(err).To(Equal(bizerror.ErrSessionInactive))
		_, err = signing.CaptureSignature(ctx, bobToken, captureDemo(), meta)
		Expect(err).To(Equal(bizerror.ErrSessionInactive))

		Expect(signing.Decline(ctx, bobToken, "", meta)).To(Equal(bizerror.ErrSessionInactive))
	})

	t.Run("a signed signer can no longer decline", func(t *testing.T) {
		contract := prepareContract(store, "lateDecline", sec)
		detail, err := signing.CreateSession(twoSignerCreation(contract.ID, signing.OrderParallel), sec)
		Expect(err).To(BeNil())

		aliceToken, err := signing.SendToSigner(detail.Signers[0].ID, sec)
		Expect(err).To(BeNil())
		_, err = signing.CaptureSignature(ctx, aliceToken, captureDemo(), meta)
		Expect(err).To(BeNil())

		Expect(signing.Decline(ctx, aliceToken, "changed my mind", meta)).To(Equal(bizerror.ErrAlreadySigned))

		db := testDatabase.DS.GormDB(ctx)
		current := signing.SigningSession{}
		Expect(db.Where("id = ?", detail.ID).First(&current).Error).To(BeNil())
		Expect(current.Status).To(Equal(signing.SessionStatusActive))
	})

	t.Run("administrative cancel requires a privileged role and inactivates the session", func(t *testing.T) {
		contract := prepareContract(store, "cancel", sec)
		detail, err := signing.CreateSession(twoSignerCreation(contract.ID, signing.OrderSequential), sec)
		Expect(err).To(BeNil())
		rawToken, err := signing.SendToSigner(detail.Signers[0].ID, sec)
		Expect(err).To(BeNil())

		outsider := testinfra.BuildSecCtx(types.ID(7))
		Expect(signing.CancelSession(detail.ID, outsider)).To(Equal(bizerror.ErrForbidden))

		Expect(signing.CancelSession(detail.ID, sec)).To(BeNil())
		Expect(signing.CancelSession(detail.ID, sec)).To(Equal(bizerror.ErrSessionInactive))

		_, err = signing.ValidateToken(ctx, rawToken, meta)
		Expect(err).To(Equal(bizerror.ErrSessionInactive))
	})
}

func TestFieldFilling(t *testing.T) {
	RegisterTestingT(t)

	testDatabase := setup(t)
	defer testinfra.StopMysqlTestDatabase(testDatabase)
	store := installFakeBlobStore()

	sec := testinfra.BuildSecCtx(types.ID(1), domain.RoleContractManager)
	ctx := context.Background()
	meta := signing.RequestMeta{}

	t.Run("capture fills only the signer's assigned fields", func(t *testing.T) {
		contract := prepareContract(store, "fields", sec)
		detail, err := signing.CreateSession(&signing.SessionCreation{
			ContractID:   contract.ID,
			SigningOrder: signing.OrderSequential,
			Signers: []signing.SignerSpec{{
				Name: "Alice", Email: "alice@acme.test",
				Fields: []signing.FieldCreation{
					{FieldType: "signature", PageNumber: 2, XPosition: 10, YPosition: 20, Width: 60, Height: 20, IsRequired: true},
					{FieldType: "date", PageNumber: 2, XPosition: 80, YPosition: 20, Width: 30, Height: 10},
				},
			}},
		}, sec)
		Expect(err).To(BeNil())
		Expect(len(detail.Fields)).To(Equal(2))

		rawToken, err := signing.SendToSigner(detail.Signers[0].ID, sec)
		Expect(err).To(BeNil())

		capture := captureDemo()
		capture.FieldValues = []signing.FieldValue{{ID: detail.Fields[1].ID, Value: "2026-08-28"}}
		signer, err := signing.CaptureSignature(ctx, rawToken, capture, meta)
		Expect(err).To(BeNil())
		Expect(signer.SignatureImagePath).ToNot(BeEmpty())
		Expect(store.get(signer.SignatureImagePath)).To(Equal(pngBytes))

		db := testDatabase.DS.GormDB(ctx)
		field := signing.SigningField{}
		Expect(db.Where("id = ?", detail.Fields[1].ID).First(&field).Error).To(BeNil())
		Expect(field.Value).To(Equal("2026-08-28"))
		Expect(field.FilledAt.Time().IsZero()).To(BeFalse())
	})
}
