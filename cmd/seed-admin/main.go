// seed-admin creates or updates the portal admin usuario. Idempotent: rerun
// resets the password and reactivates the account.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//   SPM_ADMIN_ID=admin SPM_ADMIN_PASSWORD=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/spm_backend/config"
	"bitbucket.org/mmdatafocus/spm_backend/models"
	"bitbucket.org/mmdatafocus/spm_backend/utils"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	idSpm := envOr("SPM_ADMIN_ID", "admin")
	password := os.Getenv("SPM_ADMIN_PASSWORD")
	if password == "" {
		fmt.Fprintln(os.Stderr, "SPM_ADMIN_PASSWORD is required")
		os.Exit(1)
	}
	nombre := envOr("SPM_ADMIN_NOMBRE", "Administrador SPM")
	mail := os.Getenv("SPM_ADMIN_MAIL")
	if mail != "" && !utils.IsValidEmail(mail) {
		fmt.Fprintf(os.Stderr, "SPM_ADMIN_MAIL is not a valid email: %q\n", mail)
		os.Exit(1)
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	hashedStr := string(hashed)

	var existing models.Usuario
	err = db.WithContext(ctx).Where("id_spm = ?", idSpm).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup usuario: %v\n", err)
			os.Exit(1)
		}
		// Create new admin usuario
		u := models.Usuario{
			IdSpm:          idSpm,
			Nombre:         nombre,
			Rol:            "administrador",
			Contrasena:     hashedStr,
			Mail:           utils.NilIfEmpty(mail),
			EstadoRegistro: "activo",
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin usuario: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin usuario: id_spm=%q (rol=administrador)\n", idSpm)
		return
	}

	// Update existing usuario: reset password, ensure admin role and active state
	updates := map[string]any{
		"contrasena":      hashedStr,
		"nombre":          nombre,
		"rol":             "administrador",
		"estado_registro": "activo",
	}
	if mail != "" {
		updates["mail"] = mail
	}
	if err := db.WithContext(ctx).Model(&models.Usuario{}).Where("id_spm = ?", idSpm).Updates(updates).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin usuario: %v\n", err)
		os.Exit(1)
	}
	_ = existing.RemoveInstanceRedis()
	fmt.Printf("Updated admin usuario: id_spm=%q (rol=administrador)\n", idSpm)
}
