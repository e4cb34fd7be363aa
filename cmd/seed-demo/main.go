// seed-demo is a one-shot tool that loads a small demo catalog plus eight
// weeks of synthetic demand history, so the engine can be exercised locally
// without a live inventory feed.
//
// Usage: go run ./cmd/seed-demo
package main

import (
	"context"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/joho/godotenv"

	"reorder-engine/internal/db"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	log.Println("Clearing previous demo data...")
	_, err = tx.Exec(ctx, `
		DELETE FROM reorder_history;
		DELETE FROM reorder_suggestions;
		DELETE FROM analysis_jobs;
		DELETE FROM demand_history;
		DELETE FROM reorder_policies WHERE scope <> 'global';
		DELETE FROM products;
		DELETE FROM suppliers;
		DELETE FROM categories;
	`)
	if err != nil {
		log.Fatalf("Failed to clear demo data: %v", err)
	}

	log.Println("Seeding catalog...")
	_, err = tx.Exec(ctx, `
		INSERT INTO categories (id, name) VALUES
		  (1, 'Fasteners'),
		  (2, 'Electrical'),
		  (3, 'Consumables');

		INSERT INTO suppliers (id, code, name, lead_time_days) VALUES
		  (1, 'BOLTCO', 'Bolt & Co',        5),
		  (2, 'VOLTEX', 'Voltex Components', 14),
		  (3, 'PAPYRA', 'Papyra Supplies',   3);

		INSERT INTO products (id, code, name, category_id, supplier_id, unit_price, current_stock) VALUES
		  (1, 'FAS-M6',   'M6 Hex Bolt (100 pack)',  1, 1, 12.50, 40),
		  (2, 'FAS-M8',   'M8 Hex Bolt (100 pack)',  1, 1, 16.00, 900),
		  (3, 'ELE-RLY',  '12V Relay Module',        2, 2, 4.75,  120),
		  (4, 'ELE-FUSE', 'Blade Fuse Assortment',   2, 2, 8.20,  15),
		  (5, 'CON-TAPE', 'PTFE Tape Roll',          3, 3, 1.10,  60),
		  (6, 'CON-GLV',  'Nitrile Gloves (box)',    3, 3, 9.90,  8);

		SELECT setval('categories_id_seq', 10);
		SELECT setval('suppliers_id_seq', 10);
		SELECT setval('products_id_seq', 10);
	`)
	if err != nil {
		log.Fatalf("Failed to seed catalog: %v", err)
	}

	log.Println("Seeding category and supplier policies...")
	_, err = tx.Exec(ctx, `
		INSERT INTO reorder_policies (scope, scope_id, min_stock_multiplier, safety_stock_days, review_frequency_days, auto_approve_threshold, is_active) VALUES
		  ('category', 2, 1.5, 7, 7, NULL, TRUE),
		  ('supplier', 3, 1.0, 2, 7, 90,   TRUE);
	`)
	if err != nil {
		log.Fatalf("Failed to seed policies: %v", err)
	}

	log.Println("Generating eight weeks of demand history...")
	rng := rand.New(rand.NewSource(42))
	baseDemand := map[int]float64{1: 9, 2: 4, 3: 15, 4: 2, 5: 22, 6: 1.5}
	now := time.Now()
	for productID, base := range baseDemand {
		for day := 0; day < 56; day++ {
			// Weekday-shaped noise so seasonality has something to find.
			weekday := float64(now.AddDate(0, 0, -day).Weekday())
			shape := 1 + 0.25*math.Sin(weekday/6*2*math.Pi)
			qty := base * shape * (0.7 + 0.6*rng.Float64())
			if qty < 0.5 {
				continue // no sales recorded that day
			}
			if _, err := tx.Exec(ctx,
				"INSERT INTO demand_history (product_id, recorded_at, quantity) VALUES ($1, $2, $3)",
				productID, now.AddDate(0, 0, -day), math.Round(qty),
			); err != nil {
				log.Fatalf("Failed to seed demand for product %d: %v", productID, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}

	log.Println("Demo data seeded successfully.")
}
