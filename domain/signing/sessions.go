package signing

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"contraflow/bizerror"
	"contraflow/client/s3"
	"contraflow/docrender"
	"contraflow/domain"
	"contraflow/idgen"
	"contraflow/notify"
	"contraflow/persistence"
	"contraflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
	"github.com/sony/sonyflake"
)

const (
	SessionLifetime = 30 * 24 * time.Hour
	TokenLifetime   = 7 * 24 * time.Hour
)

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	CreateSessionFunc     = CreateSession
	DetailSessionFunc     = DetailSession
	SendToSignerFunc      = SendToSigner
	SendReminderFunc      = SendReminder
	ValidateTokenFunc     = ValidateToken
	CaptureSignatureFunc  = CaptureSignature
	AdvanceSessionFunc    = AdvanceSession
	AdvanceSessionCtxFunc = AdvanceSessionCtx
	DeclineFunc           = Decline
	CancelSessionFunc     = CancelSession
)

type FieldCreation struct {
	FieldType  string  `json:"fieldType" validate:"required"`
	PageNumber int     `json:"pageNumber"`
	XPosition  float64 `json:"xPosition"`
	YPosition  float64 `json:"yPosition"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	IsRequired bool    `json:"isRequired"`
}

type SignerSpec struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Type  string `json:"type"`

	// Order is the zero-based signing position. When no signer in the
	// request carries a nonzero order, list positions are used instead.
	Order int `json:"order"`

	Fields []FieldCreation `json:"fields"`
}

type SessionCreation struct {
	ContractID   types.ID     `json:"contractId" validate:"required"`
	SigningOrder string       `json:"signingOrder"`
	Signers      []SignerSpec `json:"signers" validate:"required,min=1,dive"`
}

// RequestMeta carries the untrusted caller's network identity into the audit
// trail.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

type FieldValue struct {
	ID    types.ID `json:"id"`
	Value string   `json:"value"`
}

type SignatureCapture struct {
	FieldValues          []FieldValue `json:"fieldValues"`
	SignatureImageBase64 string       `json:"signatureImage" validate:"required"`
	SignatureMethod      string       `json:"signatureMethod"`
}

// CreateSession fingerprints the contract's source document and builds the
// signer list with stable order indices.
func CreateSession(c *SessionCreation, sec *session.Session) (*SessionDetail, error) {
	if c.SigningOrder == "" {
		c.SigningOrder = OrderSequential
	}
	if c.SigningOrder != OrderSequential && c.SigningOrder != OrderParallel {
		return nil, &bizerror.ErrBadParam{}
	}

	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	contract := domain.Contract{}
	if err := db.Where(&domain.Contract{ID: c.ContractID}).First(&contract).Error; err != nil {
		return nil, err
	}
	if contract.StoragePath == "" {
		return nil, bizerror.ErrSourceDocumentMissing
	}
	source, err := s3.GetObjectBytes(contract.StoragePath, sec)
	if err != nil {
		return nil, bizerror.ErrSourceDocumentMissing
	}
	documentHash := docrender.HashFunc(source)

	now := types.CurrentTimestamp()
	detail := &SessionDetail{
		SigningSession: SigningSession{
			ID:           idgen.NextID(idWorker),
			ContractID:   contract.ID,
			InitiatedBy:  sec.Identity.ID,
			SigningOrder: c.SigningOrder,
			Status:       SessionStatusActive,
			DocumentHash: documentHash,
			ExpiresAt:    types.Timestamp(now.Time().Add(SessionLifetime)),
			CreateTime:   now,
		},
	}

	explicitOrders := false
	for _, spec := range c.Signers {
		if spec.Order != 0 {
			explicitOrders = true
			break
		}
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&detail.SigningSession).Error; err != nil {
			return err
		}
		for index, spec := range c.Signers {
			signerType := spec.Type
			if signerType == "" {
				signerType = SignerTypeExternal
			}
			order := spec.Order
			if !explicitOrders {
				order = index
			}
			signer := SigningSessionSigner{
				ID:           idgen.NextID(idWorker),
				SessionID:    detail.ID,
				Name:         spec.Name,
				Email:        spec.Email,
				Type:         signerType,
				SigningOrder: order,
				Status:       SignerStatusPending,
			}
			if err := tx.Create(&signer).Error; err != nil {
				return err
			}
			detail.Signers = append(detail.Signers, signer)

			for _, f := range spec.Fields {
				field := SigningField{
					ID: idgen.NextID(idWorker), SessionID: detail.ID, SignerID: signer.ID,
					FieldType: f.FieldType, PageNumber: f.PageNumber,
					XPosition: f.XPosition, YPosition: f.YPosition, Width: f.Width, Height: f.Height,
					IsRequired: f.IsRequired,
				}
				if err := tx.Create(&field).Error; err != nil {
					return err
				}
				detail.Fields = append(detail.Fields, field)
			}
		}

		return appendAudit(tx, detail.ID, 0, AuditCreated, map[string]interface{}{
			"signingOrder": c.SigningOrder, "signerCount": len(c.Signers), "initiatedBy": sec.Identity.Name,
		}, RequestMeta{})
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func DetailSession(id types.ID, sec *session.Session) (*SessionDetail, error) {
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	detail := SessionDetail{}
	if err := db.Where(&SigningSession{ID: id}).First(&detail.SigningSession).Error; err != nil {
		return nil, err
	}
	if err := db.Where("session_id = ?", id).Order("signing_order ASC").Find(&detail.Signers).Error; err != nil {
		return nil, err
	}
	if err := db.Where("session_id = ?", id).Find(&detail.Fields).Error; err != nil {
		return nil, err
	}
	return &detail, nil
}

// SendToSigner issues a fresh bearer token and hands it to the notifier. The
// raw token is returned exactly once; only its digest is persisted.
func SendToSigner(signerID types.ID, sec *session.Session) (string, error) {
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)

	var rawToken string
	var signer SigningSessionSigner
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		rawToken, signer, err = sendToSignerTx(tx, signerID, AuditSent)
		return err
	})
	if err != nil {
		return "", err
	}

	notifySigner(&signer, rawToken)
	return rawToken, nil
}

// SendReminder re-sends the invitation with a fresh token, invalidating any
// previous link for this signer.
func SendReminder(signerID types.ID, sec *session.Session) (string, error) {
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)

	var rawToken string
	var signer SigningSessionSigner
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		rawToken, signer, err = sendToSignerTx(tx, signerID, AuditReminderSent)
		return err
	})
	if err != nil {
		return "", err
	}

	notifySigner(&signer, rawToken)
	return rawToken, nil
}

func sendToSignerTx(tx *gorm.DB, signerID types.ID, auditEvent string) (string, SigningSessionSigner, error) {
	signer := SigningSessionSigner{}
	if err := tx.Set("gorm:query_option", "FOR UPDATE").
		Where(&SigningSessionSigner{ID: signerID}).First(&signer).Error; err != nil {
		return "", signer, err
	}
	sess := SigningSession{}
	if err := tx.Where(&SigningSession{ID: signer.SessionID}).First(&sess).Error; err != nil {
		return "", signer, err
	}
	if sess.Status != SessionStatusActive {
		return "", signer, bizerror.ErrSessionInactive
	}
	if signer.Status == SignerStatusSigned {
		return "", signer, bizerror.ErrAlreadySigned
	}
	if signer.Status == SignerStatusDeclined {
		return "", signer, bizerror.ErrAlreadyDeclined
	}

	rawToken, digest, err := generateToken()
	if err != nil {
		return "", signer, err
	}

	now := types.CurrentTimestamp()
	changes := map[string]interface{}{
		"token": digest, "token_expires_at": types.Timestamp(now.Time().Add(TokenLifetime)),
	}
	if auditEvent == AuditSent {
		changes["status"] = SignerStatusSent
		changes["sent_at"] = now
	}
	if err := tx.Model(&SigningSessionSigner{}).Where("id = ?", signer.ID).Update(changes).Error; err != nil {
		return "", signer, err
	}

	err = appendAudit(tx, signer.SessionID, signer.ID, auditEvent, map[string]interface{}{
		"signerName": signer.Name, "signerEmail": signer.Email,
	}, RequestMeta{})
	return rawToken, signer, err
}

// ValidateToken resolves the presented bearer token to a signer. The first
// successful validation per signer stamps the view time; later validations
// do not re-append the audit row.
func ValidateToken(ctx context.Context, rawToken string, meta RequestMeta) (*SigningSessionSigner, error) {
	db := persistence.ActiveDataSourceManager.GormDB(ctx)

	signer, sess, err := findSignerByToken(db, rawToken)
	if err != nil {
		return nil, err
	}

	if sess.Status == SessionStatusActive && !sess.ExpiresAt.Time().IsZero() && sess.ExpiresAt.Time().Before(time.Now()) {
		// lazy session expiry
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&SigningSession{}).Where("id = ?", sess.ID).
				Update("status", SessionStatusExpired).Error; err != nil {
				return err
			}
			return appendAudit(tx, sess.ID, 0, AuditExpired, nil, meta)
		})
		if err != nil {
			return nil, err
		}
		return nil, bizerror.ErrSessionInactive
	}
	if sess.Status != SessionStatusActive {
		return nil, bizerror.ErrSessionInactive
	}

	if signer.ViewedAt.Time().IsZero() {
		err := db.Transaction(func(tx *gorm.DB) error {
			now := types.CurrentTimestamp()
			changes := map[string]interface{}{"viewed_at": now}
			if signer.Status == SignerStatusSent {
				changes["status"] = SignerStatusViewed
			}
			if err := tx.Model(&SigningSessionSigner{}).Where("id = ?", signer.ID).Update(changes).Error; err != nil {
				return err
			}
			signer.ViewedAt = now
			if signer.Status == SignerStatusSent {
				signer.Status = SignerStatusViewed
			}
			return appendAudit(tx, signer.SessionID, signer.ID, AuditViewed,
				map[string]interface{}{"signerName": signer.Name}, meta)
		})
		if err != nil {
			return nil, err
		}
	}

	return signer, nil
}

// CaptureSignature stores the signature artifact, fills the signer's fields
// and marks the signer signed, at most once per signer.
func CaptureSignature(ctx context.Context, rawToken string, capture *SignatureCapture, meta RequestMeta) (*SigningSessionSigner, error) {
	imageData, err := base64.StdEncoding.DecodeString(capture.SignatureImageBase64)
	if err != nil {
		return nil, bizerror.ErrInvalidSignature
	}
	contentType := http.DetectContentType(imageData)
	if contentType != "image/png" && contentType != "image/jpeg" {
		return nil, bizerror.ErrInvalidSignature
	}

	db := persistence.ActiveDataSourceManager.GormDB(ctx)
	signer, sess, err := findSignerByToken(db, rawToken)
	if err != nil {
		return nil, err
	}
	if sess.Status != SessionStatusActive {
		return nil, bizerror.ErrSessionInactive
	}
	if signer.Status != SignerStatusSent && signer.Status != SignerStatusViewed {
		if signer.Status == SignerStatusDeclined {
			return nil, bizerror.ErrAlreadyDeclined
		}
		return nil, bizerror.ErrAlreadySigned
	}

	artifactPath := fmt.Sprintf("signing/%s/%s.png", signer.SessionID.String(), signer.ID.String())
	if err := s3.PutObjectFunc(artifactPath, bytes.NewReader(imageData), &session.Session{Context: ctx}); err != nil {
		return nil, err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		// a decline or cancel racing the capture is serialized on the
		// session row
		currentSess := SigningSession{}
		if err := tx.Set("gorm:query_option", "FOR UPDATE").
			Where(&SigningSession{ID: sess.ID}).First(&currentSess).Error; err != nil {
			return err
		}
		if currentSess.Status != SessionStatusActive {
			return bizerror.ErrSessionInactive
		}

		current := SigningSessionSigner{}
		if err := tx.Set("gorm:query_option", "FOR UPDATE").
			Where(&SigningSessionSigner{ID: signer.ID}).First(&current).Error; err != nil {
			return err
		}
		// the row lock turns a concurrent double submit into AlreadySigned
		if current.Status != SignerStatusSent && current.Status != SignerStatusViewed {
			return bizerror.ErrAlreadySigned
		}

		now := types.CurrentTimestamp()
		method := capture.SignatureMethod
		if method == "" {
			method = "draw"
		}
		changes := map[string]interface{}{
			"status": SignerStatusSigned, "signed_at": now,
			"signature_image_path": artifactPath, "signature_method": method,
			"ip_address": meta.IPAddress, "user_agent": meta.UserAgent,
		}
		if err := tx.Model(&SigningSessionSigner{}).Where("id = ?", signer.ID).Update(changes).Error; err != nil {
			return err
		}
		signer.Status = SignerStatusSigned
		signer.SignedAt = now
		signer.SignatureImagePath = artifactPath

		filled := 0
		for _, fv := range capture.FieldValues {
			result := tx.Model(&SigningField{}).
				Where("id = ? AND signer_id = ?", fv.ID, signer.ID).
				Update(map[string]interface{}{"value": fv.Value, "filled_at": now})
			if result.Error != nil {
				return result.Error
			}
			filled += int(result.RowsAffected)
		}
		if filled > 0 {
			if err := appendAudit(tx, signer.SessionID, signer.ID, AuditFieldFilled,
				map[string]interface{}{"fieldsFilled": filled}, meta); err != nil {
				return err
			}
		}

		return appendAudit(tx, signer.SessionID, signer.ID, AuditSigned, map[string]interface{}{
			"signerName": signer.Name, "signatureMethod": method, "fieldsFilled": filled,
		}, meta)
	})
	if err != nil {
		return nil, err
	}
	return signer, nil
}

// AdvanceSession moves a sequential session to its next signer, or finalizes
// the session once every signer has signed. All state checks run against the
// locked session row, so two concurrent advances cannot both finalize.
func AdvanceSession(sessionID types.ID, sec *session.Session) error {
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)

	var rawToken string
	var nextSigner *SigningSessionSigner
	var completedContract *domain.Contract
	sess := SigningSession{}
	signers := []SigningSessionSigner{}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Set("gorm:query_option", "FOR UPDATE").
			Where(&SigningSession{ID: sessionID}).First(&sess).Error; err != nil {
			return err
		}
		if sess.Status != SessionStatusActive {
			return bizerror.ErrSessionInactive
		}

		if err := tx.Where("session_id = ?", sessionID).Order("signing_order ASC").Find(&signers).Error; err != nil {
			return err
		}

		if sess.SigningOrder == OrderSequential {
			for i := range signers {
				s := &signers[i]
				if s.Status == SignerStatusPending || s.Status == SignerStatusSent {
					if s.Status == SignerStatusPending {
						token, sent, err := sendToSignerTx(tx, s.ID, AuditSent)
						if err != nil {
							return err
						}
						rawToken = token
						nextSigner = &sent
					}
					return nil
				}
			}
		}

		for _, s := range signers {
			if s.Status != SignerStatusSigned {
				return nil
			}
		}
		contract, err := completeSession(tx, &sess, signers, sec)
		if err != nil {
			return err
		}
		completedContract = contract
		return nil
	})
	if err != nil {
		return err
	}

	if nextSigner != nil {
		notifySigner(nextSigner, rawToken)
	}
	if completedContract != nil {
		notifyCompletion(db, &sess, completedContract, signers)
	}
	return nil
}

// AdvanceSessionCtx drives the session forward on behalf of a public signer,
// right after a capture, without an authenticated caller.
func AdvanceSessionCtx(ctx context.Context, sessionID types.ID) error {
	return AdvanceSession(sessionID, &session.Session{Context: ctx})
}

// completeSession seals the document: overlays all captured signatures and
// field values plus the audit certificate, hashes and stores the output,
// then marks the session completed. It runs inside the caller's transaction
// with the session row locked, so the blob store writes happen at most once.
func completeSession(tx *gorm.DB, sess *SigningSession, signers []SigningSessionSigner, sec *session.Session) (*domain.Contract, error) {
	contract := domain.Contract{}
	if err := tx.Where(&domain.Contract{ID: sess.ContractID}).First(&contract).Error; err != nil {
		return nil, err
	}
	source, err := s3.GetObjectBytes(contract.StoragePath, sec)
	if err != nil {
		return nil, bizerror.ErrSourceDocumentMissing
	}
	if subtle.ConstantTimeCompare([]byte(docrender.HashFunc(source)), []byte(sess.DocumentHash)) != 1 {
		return nil, bizerror.ErrDocumentTampered
	}

	fields := []SigningField{}
	if err := tx.Where("session_id = ?", sess.ID).Find(&fields).Error; err != nil {
		return nil, err
	}

	signatures := []docrender.SignatureOverlay{}
	fieldOverlays := []docrender.FieldOverlay{}
	for _, signer := range signers {
		if signer.SignatureImagePath == "" {
			continue
		}
		positioned := false
		for _, f := range fields {
			if f.SignerID != signer.ID {
				continue
			}
			if f.FieldType == "signature" || f.FieldType == "initials" {
				positioned = true
				signatures = append(signatures, docrender.SignatureOverlay{
					Page: f.PageNumber, ImagePath: signer.SignatureImagePath,
					X: f.XPosition, Y: f.YPosition, Width: f.Width, Height: f.Height,
				})
			} else if !f.FilledAt.Time().IsZero() {
				fieldOverlays = append(fieldOverlays, docrender.FieldOverlay{
					Page: f.PageNumber, FieldType: f.FieldType, Value: f.Value,
					X: f.XPosition, Y: f.YPosition, Width: f.Width, Height: f.Height,
				})
			}
		}
		if !positioned {
			// no positioned fields: default placement on the last page
			signatures = append(signatures, docrender.SignatureOverlay{
				Page: docrender.PageCountFunc(source), ImagePath: signer.SignatureImagePath,
				X: 20, Y: 240 - 30*float64(signer.SigningOrder), Width: 60, Height: 20,
			})
		}
	}

	sealed, err := docrender.OverlayFunc(source, signatures, fieldOverlays)
	if err != nil {
		return nil, err
	}
	finalPath := fmt.Sprintf("signing/%s/final.pdf", sess.ID.String())
	if err := s3.PutObjectFunc(finalPath, bytes.NewReader(sealed), sec); err != nil {
		return nil, err
	}
	finalHash := docrender.HashFunc(sealed)

	now := types.CurrentTimestamp()
	changes := map[string]interface{}{
		"status": SessionStatusCompleted, "completed_at": now,
		"final_storage_path": finalPath, "final_document_hash": finalHash,
	}
	if err := tx.Model(&SigningSession{}).Where("id = ?", sess.ID).Update(changes).Error; err != nil {
		return nil, err
	}
	if err := tx.Model(&domain.Contract{}).Where("id = ?", contract.ID).
		Update("signing_status", domain.SigningStatusSigned).Error; err != nil {
		return nil, err
	}
	sess.Status = SessionStatusCompleted
	sess.CompletedAt = now
	sess.FinalStoragePath = finalPath
	sess.FinalDocumentHash = finalHash

	err = appendAudit(tx, sess.ID, 0, AuditCompleted, map[string]interface{}{
		"contractId": contract.ID.String(), "signerCount": len(signers),
		"finalStoragePath": finalPath, "finalDocumentHash": finalHash,
	}, RequestMeta{})
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

// completion notifications run after commit, best-effort
func notifyCompletion(db *gorm.DB, sess *SigningSession, contract *domain.Contract, signers []SigningSessionSigner) {
	for _, signer := range signers {
		if err := notify.SendFunc(signer.Email, "Signing completed",
			"All parties have signed contract "+contract.Title+"."); err != nil {
			logrus.Warnf("failed to notify signer %s of completion: %v", signer.Email, err)
		}
	}
	initiator := session.User{}
	if err := db.Where(&session.User{ID: sess.InitiatedBy}).First(&initiator).Error; err == nil && initiator.Email != "" {
		if err := notify.SendFunc(initiator.Email, "Signing completed",
			"All parties have signed contract "+contract.Title+"."); err != nil {
			logrus.Warnf("failed to notify initiator of completion: %v", err)
		}
	}
}

// Decline cancels the whole session regardless of signing order: a single
// decline halts the transaction for all parties. Session and signer state are
// re-checked under row locks, so a decline racing a capture on the same
// signer resolves to exactly one of the two outcomes.
func Decline(ctx context.Context, rawToken string, reason string, meta RequestMeta) error {
	db := persistence.ActiveDataSourceManager.GormDB(ctx)

	signer, _, err := findSignerByToken(db, rawToken)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		sess := SigningSession{}
		if err := tx.Set("gorm:query_option", "FOR UPDATE").
			Where(&SigningSession{ID: signer.SessionID}).First(&sess).Error; err != nil {
			return err
		}
		if sess.Status != SessionStatusActive {
			return bizerror.ErrSessionInactive
		}

		current := SigningSessionSigner{}
		if err := tx.Set("gorm:query_option", "FOR UPDATE").
			Where(&SigningSessionSigner{ID: signer.ID}).First(&current).Error; err != nil {
			return err
		}
		if current.Status == SignerStatusSigned {
			return bizerror.ErrAlreadySigned
		}
		if current.Status == SignerStatusDeclined {
			return bizerror.ErrAlreadyDeclined
		}

		if err := tx.Model(&SigningSessionSigner{}).Where("id = ?", signer.ID).
			Update("status", SignerStatusDeclined).Error; err != nil {
			return err
		}
		if err := appendAudit(tx, signer.SessionID, signer.ID, AuditDeclined,
			map[string]interface{}{"signerName": signer.Name, "reason": reason}, meta); err != nil {
			return err
		}
		if err := tx.Model(&SigningSession{}).Where("id = ?", sess.ID).
			Update("status", SessionStatusCancelled).Error; err != nil {
			return err
		}
		return appendAudit(tx, sess.ID, 0, AuditCancelled,
			map[string]interface{}{"declinedBy": signer.Name}, meta)
	})
}

// CancelSession is the administrative cancel.
func CancelSession(sessionID types.ID, sec *session.Session) error {
	if !sec.HasRole(domain.RoleLegalAdmin) && !sec.HasRole(domain.RoleContractManager) && !sec.IsAdmin() {
		return bizerror.ErrForbidden
	}

	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	return db.Transaction(func(tx *gorm.DB) error {
		sess := SigningSession{}
		if err := tx.Set("gorm:query_option", "FOR UPDATE").
			Where(&SigningSession{ID: sessionID}).First(&sess).Error; err != nil {
			return err
		}
		if sess.Status != SessionStatusActive {
			return bizerror.ErrSessionInactive
		}
		if err := tx.Model(&SigningSession{}).Where("id = ?", sessionID).
			Update("status", SessionStatusCancelled).Error; err != nil {
			return err
		}
		return appendAudit(tx, sessionID, 0, AuditCancelled,
			map[string]interface{}{"cancelledBy": sec.Identity.Name}, RequestMeta{})
	})
}

func findSignerByToken(db *gorm.DB, rawToken string) (*SigningSessionSigner, *SigningSession, error) {
	if rawToken == "" {
		return nil, nil, bizerror.ErrInvalidToken
	}
	digest := hashToken(rawToken)

	signer := SigningSessionSigner{}
	if err := db.Where("token = ?", digest).First(&signer).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, nil, bizerror.ErrInvalidToken
		}
		return nil, nil, err
	}
	if subtle.ConstantTimeCompare([]byte(signer.Token), []byte(digest)) != 1 {
		return nil, nil, bizerror.ErrInvalidToken
	}
	if !signer.TokenExpiresAt.Time().IsZero() && signer.TokenExpiresAt.Time().Before(time.Now()) {
		return nil, nil, bizerror.ErrTokenExpired
	}

	sess := SigningSession{}
	if err := db.Where(&SigningSession{ID: signer.SessionID}).First(&sess).Error; err != nil {
		return nil, nil, err
	}
	return &signer, &sess, nil
}

func generateToken() (string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	rawToken := hex.EncodeToString(raw)
	return rawToken, hashToken(rawToken), nil
}

func hashToken(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}

func appendAudit(tx *gorm.DB, sessionID, signerID types.ID, auditEvent string,
	details map[string]interface{}, meta RequestMeta) error {

	record := SigningAuditLog{
		ID:        idgen.NextID(idWorker),
		SessionID: sessionID,
		SignerID:  signerID,
		Event:     auditEvent,
		Details:   details,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,

		CreateTime: types.CurrentTimestamp(),
	}
	return tx.Create(&record).Error
}

func notifySigner(signer *SigningSessionSigner, rawToken string) {
	if err := notify.SendFunc(signer.Email, "You have a document to sign",
		"Open your signing link: /sign/"+rawToken); err != nil {
		logrus.Warnf("failed to notify signer %s: %v", signer.Email, err)
	}
}
