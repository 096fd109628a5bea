package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/example/partner-dispatch/internal/models"
)

// PostgresStore implements both store interfaces on top of Postgres.
// The single-accept and rejection-set invariants ride on conditional
// UPDATEs, so concurrent events stay correct without application locks.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error { return p.db.Close() }

// Collection names are part of the persisted contract and kept verbatim
// from the source system, hence the quoted identifiers.
func requestTable(k models.Kind) string {
	switch k {
	case models.KindGarageJob:
		return `"garageRequests"`
	case models.KindEmergencyCase:
		return `"emergencyCases"`
	default:
		return "rides"
	}
}

func partnerTable(k models.Kind) string {
	switch k {
	case models.KindGarageJob:
		return "mechanics"
	case models.KindEmergencyCase:
		return "ambulances"
	default:
		return "partners"
	}
}

const requestColumns = `id, status, origin_lat, origin_lon, dest_lat, dest_lon, origin_address,
	requester_id, requester_name, requester_phone, rejected_by, assigned_partner_id, otp,
	ride_type, gender_restricted, issue_description, severity, created_at, updated_at`

func (p *PostgresStore) CreateRequest(ctx context.Context, r *models.Request) error {
	var destLat, destLon sql.NullFloat64
	if r.Destination != nil {
		destLat = sql.NullFloat64{Float64: r.Destination.Lat, Valid: true}
		destLon = sql.NullFloat64{Float64: r.Destination.Lon, Valid: true}
	}
	q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		requestTable(r.Kind), requestColumns)
	_, err := p.db.ExecContext(ctx, q,
		r.ID, r.Status, r.Origin.Lat, r.Origin.Lon, destLat, destLon, r.OriginAddress,
		r.RequesterID, r.RequesterName, r.RequesterPhone, pq.Array(r.RejectedBy), r.AssignedPartnerID, r.OTP,
		r.RideType, r.GenderRestricted, r.IssueDescription, r.Severity, r.CreatedAt, r.UpdatedAt)
	return err
}

func (p *PostgresStore) GetRequest(ctx context.Context, kind models.Kind, id string) (*models.Request, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, requestColumns, requestTable(kind))
	row := p.db.QueryRowContext(ctx, q, id)

	r := models.Request{Kind: kind}
	var destLat, destLon sql.NullFloat64
	var rejected pq.StringArray
	err := row.Scan(&r.ID, &r.Status, &r.Origin.Lat, &r.Origin.Lon, &destLat, &destLon, &r.OriginAddress,
		&r.RequesterID, &r.RequesterName, &r.RequesterPhone, &rejected, &r.AssignedPartnerID, &r.OTP,
		&r.RideType, &r.GenderRestricted, &r.IssueDescription, &r.Severity, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if destLat.Valid && destLon.Valid {
		r.Destination = &models.Coord{Lat: destLat.Float64, Lon: destLon.Float64}
	}
	r.RejectedBy = []string(rejected)
	return &r, nil
}

func (p *PostgresStore) SetStatus(ctx context.Context, kind models.Kind, id string, from, to models.Status) (bool, error) {
	q := fmt.Sprintf(`UPDATE %s SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`, requestTable(kind))
	res, err := p.db.ExecContext(ctx, q, to, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (p *PostgresStore) SetOriginAddress(ctx context.Context, kind models.Kind, id, address string) error {
	q := fmt.Sprintf(`UPDATE %s SET origin_address = $1, updated_at = now() WHERE id = $2`, requestTable(kind))
	_, err := p.db.ExecContext(ctx, q, address, id)
	return err
}

// AddRejection uses an add-to-set update so concurrent appends from
// different partners are both preserved and duplicates never enter the
// array.
func (p *PostgresStore) AddRejection(ctx context.Context, kind models.Kind, id, partnerID string) (bool, error) {
	q := fmt.Sprintf(`UPDATE %s SET rejected_by = array_append(rejected_by, $1), updated_at = now()
		WHERE id = $2 AND NOT (rejected_by @> ARRAY[$1]) AND assigned_partner_id <> $1`, requestTable(kind))
	res, err := p.db.ExecContext(ctx, q, partnerID, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 && !p.requestExists(ctx, kind, id) {
		return false, ErrNotFound
	}
	return n > 0, nil
}

// Accept is the single-accept guard: the status predicate makes exactly
// one of any number of racing accepts win. The winner is stripped from
// rejected_by so the assigned partner is never also in the rejection set.
func (p *PostgresStore) Accept(ctx context.Context, kind models.Kind, id, partnerID string) error {
	q := fmt.Sprintf(`UPDATE %s SET status = $1, assigned_partner_id = $2,
		rejected_by = array_remove(rejected_by, $2), updated_at = now()
		WHERE id = $3 AND status = $4`, requestTable(kind))
	res, err := p.db.ExecContext(ctx, q, models.StatusAssigned, partnerID, id, models.DispatchableStatus(kind))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if !p.requestExists(ctx, kind, id) {
			return ErrNotFound
		}
		return ErrAlreadyTaken
	}
	return nil
}

func (p *PostgresStore) requestExists(ctx context.Context, kind models.Kind, id string) bool {
	q := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, requestTable(kind))
	var exists bool
	if err := p.db.QueryRowContext(ctx, q, id).Scan(&exists); err != nil {
		return true
	}
	return exists
}

func (p *PostgresStore) CreatePartner(ctx context.Context, pr *models.Partner) error {
	var lat, lon sql.NullFloat64
	if pr.Location != nil {
		lat = sql.NullFloat64{Float64: pr.Location.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: pr.Location.Lon, Valid: true}
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, display_name, phone, push_token, status, is_online,
		current_lat, current_lon, last_heartbeat_at, vehicle_class, gender_restricted_service)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`, partnerTable(pr.Kind))
	_, err := p.db.ExecContext(ctx, q,
		pr.ID, pr.DisplayName, pr.Phone, pr.PushToken, pr.Status, pr.IsOnline,
		lat, lon, pr.LastHeartbeatAt, pr.VehicleClass, pr.GenderRestrictedService)
	return err
}

func (p *PostgresStore) ListOnlinePartners(ctx context.Context, kind models.Kind) ([]models.Partner, error) {
	q := fmt.Sprintf(`SELECT id, display_name, phone, push_token, status, is_online,
		current_lat, current_lon, last_heartbeat_at, vehicle_class, gender_restricted_service
		FROM %s WHERE is_online`, partnerTable(kind))
	if kind == models.KindRide {
		q += ` AND status = 'available'`
	}
	q += ` ORDER BY id`
	rows, err := p.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Partner{}
	for rows.Next() {
		pr := models.Partner{Kind: kind}
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&pr.ID, &pr.DisplayName, &pr.Phone, &pr.PushToken, &pr.Status, &pr.IsOnline,
			&lat, &lon, &pr.LastHeartbeatAt, &pr.VehicleClass, &pr.GenderRestrictedService); err != nil {
			return nil, err
		}
		if lat.Valid && lon.Valid {
			pr.Location = &models.Coord{Lat: lat.Float64, Lon: lon.Float64}
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Heartbeat(ctx context.Context, kind models.Kind, partnerID string, loc models.Coord, at time.Time) error {
	q := fmt.Sprintf(`UPDATE %s SET current_lat = $1, current_lon = $2, last_heartbeat_at = $3, is_online = true
		WHERE id = $4`, partnerTable(kind))
	res, err := p.db.ExecContext(ctx, q, loc.Lat, loc.Lon, at, partnerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) SetBusy(ctx context.Context, kind models.Kind, partnerID string) error {
	q := fmt.Sprintf(`UPDATE %s SET status = $1 WHERE id = $2`, partnerTable(kind))
	_, err := p.db.ExecContext(ctx, q, models.PartnerBusy, partnerID)
	return err
}

// SweepStale runs one batched update per collection. Best-effort: a
// failed table is reported but does not stop the remaining sweeps, the
// records simply reappear next cycle.
func (p *PostgresStore) SweepStale(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	var firstErr error
	for _, table := range []string{"partners", "mechanics", "ambulances", "users"} {
		q := fmt.Sprintf(`UPDATE %s SET is_online = false, current_lat = NULL, current_lon = NULL
			WHERE is_online AND last_heartbeat_at < $1`, table)
		res, err := p.db.ExecContext(ctx, q, cutoff)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("sweep %s: %w", table, err)
			}
			continue
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	return total, firstErr
}
