package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"chatterfix/cmms/schema"
	"chatterfix/cmms/storage"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(err error, code int) error {
	return &codedError{err: err, code: code}
}

func GetResponseCode(err error) int {
	var cerr *codedError
	if errors.As(err, &cerr) {
		return cerr.code
	}
	slog.Error("non coded error passed to GetResponseCode", "error", err)
	return http.StatusInternalServerError
}

func checkUserExists(txn *gorm.DB, userId uuid.UUID) error {
	if _, err := schema.GetUser(userId, txn); err != nil {
		if errors.Is(err, schema.ErrUserNotFound) {
			return CodedError(err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

func checkTeamExists(txn *gorm.DB, teamId uuid.UUID) error {
	if _, err := schema.GetTeam(teamId, txn); err != nil {
		if errors.Is(err, schema.ErrTeamNotFound) {
			return CodedError(err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

func checkTeamMember(txn *gorm.DB, userId, teamId uuid.UUID) error {
	if _, err := schema.GetUserTeam(teamId, userId, txn); err != nil {
		if errors.Is(err, schema.ErrUserTeamNotFound) {
			return CodedError(errors.New("user is not a member of team"), http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

func getAssetForUpdate(txn *gorm.DB, assetId uuid.UUID) (schema.Asset, error) {
	asset, err := schema.GetAsset(assetId, txn)
	if err != nil {
		if errors.Is(err, schema.ErrAssetNotFound) {
			return asset, CodedError(err, http.StatusNotFound)
		}
		return asset, CodedError(err, http.StatusInternalServerError)
	}
	return asset, nil
}

func checkAssetAcceptsWork(asset *schema.Asset) error {
	if asset.Status == schema.AssetRetired {
		return CodedError(fmt.Errorf("asset %v is retired and cannot accept new work", asset.Id), http.StatusUnprocessableEntity)
	}
	return nil
}

func checkDiskUsage(store storage.Storage) error {
	stats, err := store.Usage()
	if err != nil {
		slog.Error("unable to get disk usage from storage", "error", err)
		return CodedError(errors.New("unable to get disk usage"), http.StatusInternalServerError)
	}
	oneMib := uint64(1024 * 1024)
	// Either 20% disk needs to be free or 20Gb (in case the disk is very large)
	threshold := min(stats.TotalBytes/5, 20*1024*oneMib)
	if stats.FreeBytes < threshold {
		used := (stats.TotalBytes - stats.FreeBytes) / oneMib
		total := stats.TotalBytes / oneMib
		delta := (threshold - stats.FreeBytes) / oneMib
		return CodedError(fmt.Errorf("insufficient disk space available, usage: %d/%d Mib, please clear %d Mib", used, total, delta), http.StatusInsufficientStorage)
	}
	return nil
}

func checkSufficientStorage(store storage.Storage) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		handler := func(w http.ResponseWriter, r *http.Request) {
			if err := checkDiskUsage(store); err != nil {
				slog.Error(err.Error())
				http.Error(w, err.Error(), GetResponseCode(err))
				return
			}
			next.ServeHTTP(w, r)
		}

		return http.HandlerFunc(handler)
	}
}

// consumeStock decrements part stock and journals the adjustment in one place so
// the quantity invariant holds for both work order consumption and manual
// adjustments. Delta is negative for consumption.
func consumeStock(txn *gorm.DB, part *schema.Part, delta int, reason string, workOrderId *uuid.UUID, userId uuid.UUID) error {
	newQuantity := part.Quantity + delta
	if newQuantity < 0 {
		return CodedError(
			fmt.Errorf("insufficient stock for part %v: have %d, requested %d", part.Sku, part.Quantity, -delta),
			http.StatusConflict,
		)
	}

	result := txn.Model(&schema.Part{Id: part.Id}).Where("quantity = ?", part.Quantity).Update("quantity", newQuantity)
	if result.Error != nil {
		slog.Error("sql error updating part stock", "part_id", part.Id, "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}
	if result.RowsAffected == 0 {
		// Another transaction changed the stock between read and write.
		return CodedError(fmt.Errorf("stock for part %v changed concurrently, please retry", part.Sku), http.StatusConflict)
	}

	adjustment := schema.StockAdjustment{
		Id:          uuid.New(),
		PartId:      part.Id,
		Delta:       delta,
		Reason:      reason,
		WorkOrderId: workOrderId,
		UserId:      userId,
	}
	result = txn.Create(&adjustment)
	if result.Error != nil {
		slog.Error("sql error journaling stock adjustment", "part_id", part.Id, "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}

	part.Quantity = newQuantity
	return nil
}
