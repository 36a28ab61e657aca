package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sma-almacen/sma/internal/app"
	"github.com/sma-almacen/sma/internal/masterdata/items"
	"github.com/sma-almacen/sma/internal/masterdata/suppliers"
	"github.com/sma-almacen/sma/internal/platform/db"
	"github.com/sma-almacen/sma/internal/rbac"
	"github.com/sma-almacen/sma/internal/shared"
	"github.com/sma-almacen/sma/internal/users"
)

func main() {
	demo := flag.Bool("demo", false, "also seed demo suppliers and items")
	flag.Parse()

	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		log.Fatal("SEED_ADMIN_PASSWORD must be set")
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx := context.Background()
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 2})
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	fmt.Println("→ Seeding users...")
	usersService := users.NewService(users.NewRepository(pool), app.NewLogger(cfg))
	if err := seedUsers(ctx, usersService, password); err != nil {
		log.Fatalf("seed users: %v", err)
	}

	if *demo {
		fmt.Println("→ Seeding suppliers...")
		if err := seedSuppliers(ctx, suppliers.NewService(suppliers.NewRepository(pool))); err != nil {
			log.Fatalf("seed suppliers: %v", err)
		}
		fmt.Println("→ Seeding items...")
		if err := seedItems(ctx, items.NewService(items.NewRepository(pool))); err != nil {
			log.Fatalf("seed items: %v", err)
		}
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func seedUsers(ctx context.Context, svc *users.Service, password string) error {
	accounts := []users.CreateInput{
		{Username: "admin", FirstName: "Administrador", Level: rbac.LevelAdmin},
		{Username: "responsable", FirstName: "Responsable", LastName: "de Área", Level: rbac.LevelResponsible},
		{Username: "jefe", FirstName: "Jefe", LastName: "de Almacén", Level: rbac.LevelChief},
	}
	for _, in := range accounts {
		in.Password, in.Confirm = password, password
		if _, err := svc.Create(ctx, in); err != nil {
			if errors.Is(err, shared.ErrDuplicate) {
				continue
			}
			return fmt.Errorf("%s: %w", in.Username, err)
		}
	}
	return nil
}

func seedSuppliers(ctx context.Context, svc *suppliers.Service) error {
	existing, err := svc.Active(ctx)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(existing))
	for _, s := range existing {
		seen[s.Name] = true
	}
	for _, s := range []suppliers.Supplier{
		{Name: "Papelería del Centro", TaxID: "PCE010101AB1", Contact: "ventas@papeleriacentro.mx", LineOfBusiness: "Papelería", Active: true},
		{Name: "Limpieza Industrial del Norte", TaxID: "LIN020202CD2", Contact: "pedidos@lin.mx", LineOfBusiness: "Limpieza", Active: true},
	} {
		if seen[s.Name] {
			continue
		}
		if _, err := svc.Create(ctx, s); err != nil {
			return fmt.Errorf("%s: %w", s.Name, err)
		}
	}
	return nil
}

func seedItems(ctx context.Context, svc *items.Service) error {
	classes, err := svc.Classes(ctx)
	if err != nil {
		return err
	}
	classID := make(map[string]int64, len(classes))
	for _, c := range classes {
		classID[c.Name] = c.ID
	}
	current, err := svc.List(ctx, items.ListFilter{})
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(current))
	for _, it := range current {
		seen[it.Description] = true
	}

	demo := []struct {
		class string
		item  items.NewItem
	}{
		{"Papelería", items.NewItem{Description: "Hojas blancas carta (paquete 500)", Unit: "PAQ", Location: "Estante A1", UnitCost: decimal.RequireFromString("89.90")}},
		{"Papelería", items.NewItem{Description: "Bolígrafo azul", Unit: "PZA", Location: "Estante A2", UnitCost: decimal.RequireFromString("6.50")}},
		{"Limpieza", items.NewItem{Description: "Cloro 1 L", Unit: "LT", Location: "Bodega B", UnitCost: decimal.RequireFromString("21.00")}},
		{"Cómputo", items.NewItem{Description: "Mouse óptico USB", Unit: "PZA", Location: "Estante C1", UnitCost: decimal.RequireFromString("149.00")}},
	}
	for _, d := range demo {
		if seen[d.item.Description] {
			continue
		}
		id, ok := classID[d.class]
		if !ok {
			return fmt.Errorf("class %q missing, run migrations first", d.class)
		}
		d.item.ClassID = id
		if _, err := svc.Create(ctx, d.item); err != nil {
			return fmt.Errorf("%s: %w", d.item.Description, err)
		}
	}
	return nil
}
