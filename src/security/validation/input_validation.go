package validation

import (
	"fmt"
	"strings"

	"github.com/username/coinfolio/backend/src/logger"
	"github.com/username/coinfolio/backend/src/models"
)

// AllowedImportContentTypes is a map for quick lookup of allowed
// client-declared MIME types on the transaction import endpoint.
var AllowedImportContentTypes = map[string]bool{
	"application/json": true,
	"text/json":        true,
}

// ValidateImportContentType checks the Content-Type header provided by the client.
func ValidateImportContentType(contentType string) error {
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if !AllowedImportContentTypes[mediaType] {
		logger.L.Warn("Disallowed client-declared Content-Type for import", "contentType", contentType)
		return fmt.Errorf("content type '%s' is not allowed for transaction import", contentType)
	}
	return nil
}

var allowedProvenances = map[models.Provenance]bool{
	models.ProvenanceWallet:      true,
	models.ProvenanceCSVImport:   true,
	models.ProvenanceExchangeAPI: true,
}

// ValidateImportedTransaction checks client-supplied fields that the engine
// cannot guard itself against: unknown provenance labels and oversized
// free-text fields. Missing assets or timestamps are left to the engine,
// which records them as anomalies rather than rejecting the whole batch.
func ValidateImportedTransaction(tx *models.UnifiedTransaction) error {
	if tx.Provenance != "" && !allowedProvenances[tx.Provenance] {
		return fmt.Errorf("unknown provenance '%s'", tx.Provenance)
	}
	if len(tx.Annotation) > 1024 {
		return fmt.Errorf("annotation exceeds 1024 characters")
	}
	if len(tx.AssetSymbol) > 32 {
		return fmt.Errorf("asset symbol exceeds 32 characters")
	}
	tx.AssetSymbol = NormalizeAssetSymbol(tx.AssetSymbol)
	tx.IncomingAssetSymbol = NormalizeAssetSymbol(tx.IncomingAssetSymbol)
	tx.Annotation = StripUnprintable(tx.Annotation)
	return nil
}
