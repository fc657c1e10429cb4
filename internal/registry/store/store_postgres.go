package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"vcregistry/internal/registry/models"
	"vcregistry/internal/sentinel"
	id "vcregistry/pkg/domain"
)

// PostgresStore persists credentials in PostgreSQL. Every mutation is a
// single conditional statement, so replicas sharing the table keep the
// uniqueness and existence guarantees without explicit locking.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, did id.DID, vcID id.VCID, vc models.VerifiableCredential) error {
	info, err := marshalSubjectInfo(vc.SubjectInfo)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (
			did, vc_id, valid_since, valid_until, subject_did,
			subject_info, description, content, revoked
		)
		VALUES ($1, $2::numeric, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (did, vc_id) DO NOTHING
	`,
		string(did),
		vcID.String(),
		vc.ValidSince,
		vc.ValidUntil,
		string(vc.SubjectDID),
		info,
		vc.Description,
		vc.Content,
		vc.Revoked,
	)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert credential rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrAlreadyExists
	}
	return nil
}

func (s *PostgresStore) SetRevoked(ctx context.Context, did id.DID, vcID id.VCID, revoked bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE credentials
		SET revoked = $3, updated_at = NOW()
		WHERE did = $1 AND vc_id = $2::numeric
	`, string(did), vcID.String(), revoked)
	if err != nil {
		return fmt.Errorf("set revoked: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set revoked rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

const selectCredential = `
	SELECT did, vc_id::text, valid_since, valid_until, subject_did,
	       subject_info, description, content, revoked
	FROM credentials
`

func (s *PostgresStore) Find(ctx context.Context, did id.DID, vcID id.VCID) (*models.VerifiableCredential, error) {
	row := s.db.QueryRowContext(ctx, selectCredential+`WHERE did = $1 AND vc_id = $2::numeric`,
		string(did), vcID.String())
	stored, err := scanCredential(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find credential: %w", err)
	}
	return &stored.Credential, nil
}

func (s *PostgresStore) ListByDID(ctx context.Context, did id.DID) ([]models.StoredCredential, error) {
	rows, err := s.db.QueryContext(ctx, selectCredential+`WHERE did = $1 ORDER BY vc_id ASC`, string(did))
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	out := []models.StoredCredential{}
	for rows.Next() {
		stored, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		out = append(out, stored)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListDIDs(ctx context.Context) ([]id.DID, error) {
	// COLLATE "C" orders by bytes, matching Go string comparison.
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT did COLLATE "C" AS did
		FROM credentials
		ORDER BY did
	`)
	if err != nil {
		return nil, fmt.Errorf("list dids: %w", err)
	}
	defer rows.Close()

	out := []id.DID{}
	for rows.Next() {
		var did string
		if err := rows.Scan(&did); err != nil {
			return nil, fmt.Errorf("scan did: %w", err)
		}
		out = append(out, id.DID(did))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dids: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (models.StoredCredential, error) {
	var (
		did, vcID, subjectDID string
		info                  []byte
		vc                    models.VerifiableCredential
	)
	if err := row.Scan(&did, &vcID, &vc.ValidSince, &vc.ValidUntil, &subjectDID,
		&info, &vc.Description, &vc.Content, &vc.Revoked); err != nil {
		return models.StoredCredential{}, err
	}
	parsedID, err := id.ParseVCID(vcID)
	if err != nil {
		return models.StoredCredential{}, fmt.Errorf("parse stored vc_id %q: %w", vcID, err)
	}
	if err := json.Unmarshal(info, &vc.SubjectInfo); err != nil {
		return models.StoredCredential{}, fmt.Errorf("decode subject_info: %w", err)
	}
	if len(vc.SubjectInfo) == 0 {
		vc.SubjectInfo = nil
	}
	vc.SubjectDID = id.DID(subjectDID)
	return models.StoredCredential{DID: id.DID(did), VCID: parsedID, Credential: vc}, nil
}

func marshalSubjectInfo(attrs []models.SubjectAttribute) ([]byte, error) {
	if attrs == nil {
		attrs = []models.SubjectAttribute{}
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("encode subject_info: %w", err)
	}
	return b, nil
}

var _ CredentialStore = (*PostgresStore)(nil)
