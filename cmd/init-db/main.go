// init-db migrates the schema and seeds the catalog tables from CSV files.
//
// Expected files under --catalog-dir (all optional; missing files are skipped):
//
//	centros.csv    codigo,nombre[,descripcion]
//	almacenes.csv  codigo,nombre,centro_codigo[,descripcion]
//	sectores.csv   nombre[,descripcion]
//	roles.csv      nombre[,descripcion]
//	puestos.csv    nombre[,descripcion]
//
// Rows are upserted by their unique key, so the tool is safe to rerun. With
// --planner-wildcards it also seeds a wildcard claim-queue scope for every
// usuario whose rol marks them as planner.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/mmdatafocus/spm_backend/config"
	"bitbucket.org/mmdatafocus/spm_backend/models"
	"bitbucket.org/mmdatafocus/spm_backend/utils"
)

func readCsv(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return reader.ReadAll()
}

func field(record []string, index int) string {
	if index >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[index])
}

func optionalField(record []string, index int) *string {
	v := field(record, index)
	if v == "" {
		return nil
	}
	return &v
}

// upsertBy writes one catalog row, updating the payload columns when the key
// column already exists.
func upsertBy(db *gorm.DB, keyColumn string, updateColumns []string, row interface{}) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: keyColumn}},
		DoUpdates: clause.AssignmentColumns(updateColumns),
	}).Create(row).Error
}

func seedCentros(db *gorm.DB, path string) (int, error) {
	records, err := readCsv(path)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, record := range records {
		codigo := field(record, 0)
		if codigo == "" || strings.EqualFold(codigo, "codigo") {
			continue
		}
		nombre := field(record, 1)
		if nombre == "" {
			nombre = codigo
		}
		centro := models.CatalogCentro{
			Codigo:      codigo,
			Nombre:      nombre,
			Descripcion: optionalField(record, 2),
			Activo:      true,
		}
		if err := upsertBy(db, "codigo", []string{"nombre", "descripcion", "activo"}, &centro); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func seedAlmacenes(db *gorm.DB, path string) (int, error) {
	records, err := readCsv(path)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, record := range records {
		codigo := field(record, 0)
		if codigo == "" || strings.EqualFold(codigo, "codigo") {
			continue
		}
		nombre := field(record, 1)
		if nombre == "" {
			nombre = codigo
		}
		almacen := models.CatalogAlmacen{
			Codigo:       codigo,
			Nombre:       nombre,
			CentroCodigo: field(record, 2),
			Descripcion:  optionalField(record, 3),
			Activo:       true,
		}
		if err := upsertBy(db, "codigo", []string{"nombre", "centro_codigo", "descripcion", "activo"}, &almacen); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// seedNombres covers the name-keyed catalogs (sectores, roles, puestos).
func seedNombres[T any](db *gorm.DB, path string, build func(nombre string, descripcion *string) T) (int, error) {
	records, err := readCsv(path)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, record := range records {
		nombre := field(record, 0)
		if nombre == "" || strings.EqualFold(nombre, "nombre") {
			continue
		}
		row := build(nombre, optionalField(record, 1))
		if err := upsertBy(db, "nombre", []string{"descripcion", "activo"}, &row); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func seedFile(name string, path string, seed func(string) (int, error)) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Printf("%s: not found, skipped\n", name)
		return
	}
	count, err := seed(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		os.Exit(1)
	}
	fmt.Printf("%s: %d rows\n", name, count)
}

func main() {
	catalogDir := flag.String("catalog-dir", "./catalogos", "Directory with the catalog CSV files")
	skipSeed := flag.Bool("skip-seed", false, "Only run migrations; do not touch catalog tables")
	plannerWildcards := flag.Bool("planner-wildcards", false, "Seed a wildcard queue scope for every planner usuario")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	models.MigrateTable()
	fmt.Println("migrations: ok")

	if !*skipSeed {
		seedFile("centros", filepath.Join(*catalogDir, "centros.csv"), func(p string) (int, error) {
			return seedCentros(db, p)
		})
		seedFile("almacenes", filepath.Join(*catalogDir, "almacenes.csv"), func(p string) (int, error) {
			return seedAlmacenes(db, p)
		})
		seedFile("sectores", filepath.Join(*catalogDir, "sectores.csv"), func(p string) (int, error) {
			return seedNombres(db, p, func(nombre string, descripcion *string) models.CatalogSector {
				return models.CatalogSector{Nombre: nombre, Descripcion: descripcion, Activo: true}
			})
		})
		seedFile("roles", filepath.Join(*catalogDir, "roles.csv"), func(p string) (int, error) {
			return seedNombres(db, p, func(nombre string, descripcion *string) models.CatalogRol {
				return models.CatalogRol{Nombre: nombre, Descripcion: descripcion, Activo: true}
			})
		})
		seedFile("puestos", filepath.Join(*catalogDir, "puestos.csv"), func(p string) (int, error) {
			return seedNombres(db, p, func(nombre string, descripcion *string) models.CatalogPuesto {
				return models.CatalogPuesto{Nombre: nombre, Descripcion: descripcion, Activo: true}
			})
		})

		// Stale cached lists would hide the fresh rows until they expire.
		_ = utils.RemoveRedisList[models.CatalogCentro]()
		_ = utils.RemoveRedisList[models.CatalogAlmacen]()
		_ = utils.RemoveRedisList[models.CatalogSector]()
		_ = utils.RemoveRedisList[models.CatalogRol]()
		_ = utils.RemoveRedisList[models.CatalogPuesto]()
	}

	if *plannerWildcards {
		var usuarios []*models.Usuario
		if err := db.WithContext(ctx).Find(&usuarios).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to list usuarios: %v\n", err)
			os.Exit(1)
		}
		seeded := 0
		for _, usuario := range usuarios {
			if !usuario.AsActor().EsPlanificador() {
				continue
			}
			if err := models.EnsureAsignacion(ctx, usuario.IdSpm, nil, nil, nil, 0); err != nil {
				fmt.Fprintf(os.Stderr, "failed to seed scope for %s: %v\n", usuario.IdSpm, err)
				os.Exit(1)
			}
			seeded++
		}
		fmt.Printf("planner wildcard scopes: %d\n", seeded)
	}
}
