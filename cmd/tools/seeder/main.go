package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/sellsi/backend-sellsi/internal/store"
)

// Seeds a local database with demo accounts, a supplier catalog with volume
// tiers, and a default buyer address. Safe to run repeatedly.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	q := store.New(pool)

	userIDs := seedUsers(ctx, q)
	seedCatalog(ctx, q, userIDs["proveedor@sellsi.cl"])
	seedAddress(ctx, q, userIDs["comprador@sellsi.cl"])
	seedFinancingLine(ctx, q, userIDs["proveedor@sellsi.cl"])

	log.Println("seeding completed")
}

func seedUsers(ctx context.Context, q *store.Queries) map[string]pgtype.UUID {
	users := []struct {
		Name  string
		Email string
		Role  string
	}{
		{"Administración Sellsi", "admin@sellsi.cl", "admin"},
		{"Comercial Andes SpA", "proveedor@sellsi.cl", "supplier"},
		{"Distribuidora Sur Ltda", "proveedor2@sellsi.cl", "supplier"},
		{"María González", "comprador@sellsi.cl", "buyer"},
		{"Pedro Soto", "pedro@example.cl", "buyer"},
		{"Camila Rojas", "camila@example.cl", "buyer"},
	}

	hash, err := argon2id.CreateHash("password123", argon2id.DefaultParams)
	if err != nil {
		log.Fatalf("hash demo password: %v", err)
	}

	log.Println("seeding users")
	ids := make(map[string]pgtype.UUID, len(users))
	for _, u := range users {
		created, err := q.CreateUser(ctx, store.CreateUserParams{
			Email:        u.Email,
			PasswordHash: hash,
			Name:         u.Name,
			Role:         u.Role,
		})
		if err != nil {
			// Most likely already seeded; reuse the existing row.
			existing, lookupErr := q.GetUserByEmail(ctx, u.Email)
			if lookupErr != nil {
				log.Printf("seed user %s: %v", u.Email, err)
				continue
			}
			ids[u.Email] = existing.ID
			continue
		}
		ids[u.Email] = created.ID
	}
	return ids
}

func seedCatalog(ctx context.Context, q *store.Queries, supplierID pgtype.UUID) {
	if !supplierID.Valid {
		log.Println("skipping catalog seed: supplier account missing")
		return
	}

	products := []struct {
		Slug      string
		Title     string
		BasePrice int64
		Stock     int32
		Tiers     []struct {
			MinQty    int32
			UnitPrice int64
		}
	}{
		{
			Slug: "resma-papel-carta", Title: "Resma papel carta 500 hojas", BasePrice: 4990, Stock: 800,
			Tiers: []struct {
				MinQty    int32
				UnitPrice int64
			}{{10, 4490}, {50, 3990}, {200, 3490}},
		},
		{
			Slug: "caja-guantes-nitrilo", Title: "Caja guantes nitrilo talla M", BasePrice: 7990, Stock: 400,
			Tiers: []struct {
				MinQty    int32
				UnitPrice int64
			}{{20, 7290}, {100, 6590}},
		},
		{
			Slug: "bidon-alcohol-gel-5l", Title: "Bidón alcohol gel 5 litros", BasePrice: 12990, Stock: 150,
			Tiers: []struct {
				MinQty    int32
				UnitPrice int64
			}{{6, 11990}, {24, 10990}},
		},
		{
			Slug: "pack-cuadernos-universitarios", Title: "Pack 10 cuadernos universitarios", BasePrice: 15990, Stock: 250,
		},
	}

	log.Println("seeding products")
	for _, p := range products {
		if _, err := q.GetProductBySlug(ctx, p.Slug); err == nil {
			continue
		}
		created, err := q.CreateProduct(ctx, store.CreateProductParams{
			SupplierID: supplierID,
			Slug:       p.Slug,
			Title:      p.Title,
			BasePrice:  p.BasePrice,
			Stock:      p.Stock,
			Active:     true,
		})
		if err != nil {
			log.Printf("seed product %s: %v", p.Slug, err)
			continue
		}
		for i, tier := range p.Tiers {
			if err := q.CreatePriceTier(ctx, store.CreatePriceTierParams{
				ProductID: created.ID,
				MinQty:    tier.MinQty,
				UnitPrice: tier.UnitPrice,
				Position:  int32(i),
			}); err != nil {
				log.Printf("seed tier for %s: %v", p.Slug, err)
			}
		}
	}
}

func seedFinancingLine(ctx context.Context, q *store.Queries, supplierID pgtype.UUID) {
	if !supplierID.Valid {
		log.Println("skipping financing seed: supplier account missing")
		return
	}
	existing, err := q.ListFinancingLinesBySupplier(ctx, supplierID)
	if err != nil || len(existing) > 0 {
		return
	}
	log.Println("seeding financing line")
	now := time.Now()
	_, err = q.CreateFinancingLine(ctx, store.CreateFinancingLineParams{
		SupplierID:  supplierID,
		Granted:     5_000_000,
		TermDays:    30,
		ActivatedAt: pgtype.Timestamptz{Time: now, Valid: true},
		ExpiresAt:   pgtype.Timestamptz{Time: now.AddDate(0, 0, 30), Valid: true},
	})
	if err != nil {
		log.Printf("seed financing line: %v", err)
	}
}

func seedAddress(ctx context.Context, q *store.Queries, buyerID pgtype.UUID) {
	if !buyerID.Valid {
		log.Println("skipping address seed: buyer account missing")
		return
	}
	existing, err := q.CountAddressesByUser(ctx, buyerID)
	if err != nil || existing > 0 {
		return
	}
	log.Println("seeding addresses")
	_, err = q.CreateAddress(ctx, store.CreateAddressParams{
		UserID:       buyerID,
		Label:        pgtype.Text{String: "Oficina", Valid: true},
		ReceiverName: pgtype.Text{String: "María González", Valid: true},
		Phone:        pgtype.Text{String: "+56 9 8765 4321", Valid: true},
		Region:       pgtype.Text{String: "Región Metropolitana", Valid: true},
		Comuna:       pgtype.Text{String: "Providencia", Valid: true},
		PostalCode:   pgtype.Text{String: "7500000", Valid: true},
		AddressLine1: pgtype.Text{String: "Av. Providencia 1234, of. 502", Valid: true},
		IsDefault:    true,
	})
	if err != nil {
		log.Printf("seed address: %v", err)
	}
}
