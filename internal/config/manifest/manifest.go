// Package manifest reads and writes the install receipt kept in every keg.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	// ReceiptFileName is the receipt's file name inside a keg.
	ReceiptFileName = "INSTALL_RECEIPT.json"
	SchemaVersion   = "1"
)

// SourceInfo records the verified archive.
type SourceInfo struct {
	URL       string `json:"url"`
	SHA256    string `json:"sha256"`
	SizeBytes int64  `json:"size_bytes"`
	Signed    bool   `json:"signed,omitempty"`
}

// RuntimeInfo records the interpreter the environment is bound to.
type RuntimeInfo struct {
	Requirement string `json:"requirement"`
	Interpreter string `json:"interpreter"`
	Version     string `json:"version"`
}

// HostInfo records the machine the install ran on.
type HostInfo struct {
	OS      string `json:"os"`
	Arch    string `json:"arch"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// Receipt describes a completed install.
type Receipt struct {
	SchemaVersion string      `json:"schema_version"`
	InstallID     string      `json:"install_id"`
	Name          string      `json:"name"`
	Version       string      `json:"version"`
	InstalledAt   string      `json:"installed_at"`
	Source        SourceInfo  `json:"source"`
	Runtime       RuntimeInfo `json:"runtime"`
	Host          HostInfo    `json:"host"`
	Binaries      []string    `json:"binaries"`
	PostInstall   []string    `json:"post_install,omitempty"`
	SmokeTested   bool        `json:"smoke_tested"`
}

// NewReceipt returns a receipt for name@version stamped with a fresh
// install id and the current time.
func NewReceipt(name, version string) Receipt {
	return Receipt{
		SchemaVersion: SchemaVersion,
		InstallID:     generateInstallID(),
		Name:          name,
		Version:       version,
		InstalledAt:   time.Now().UTC().Format(time.RFC3339),
	}
}

func generateInstallID() string {
	return uuid.NewString()
}

// ReceiptPath returns where the receipt lives in kegDir.
func ReceiptPath(kegDir string) string {
	return filepath.Join(kegDir, ReceiptFileName)
}

// WriteReceiptToFile writes r as indented JSON to path, replacing any
// existing file atomically.
func WriteReceiptToFile(r Receipt, path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal receipt: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create receipt directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write receipt: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write receipt: %w", err)
	}
	return nil
}

// ReadReceipt loads the receipt at path.
func ReadReceipt(path string) (Receipt, error) {
	var r Receipt
	data, err := os.ReadFile(path)
	if err != nil {
		return r, fmt.Errorf("failed to read receipt: %w", err)
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("failed to parse receipt %s: %w", path, err)
	}
	if r.SchemaVersion != SchemaVersion {
		return r, fmt.Errorf("unsupported receipt schema version %q in %s", r.SchemaVersion, path)
	}
	return r, nil
}
