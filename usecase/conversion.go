package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/planconv/planconv/core/config"
	"github.com/planconv/planconv/domains/conversion"
	"github.com/planconv/planconv/pkg/convworker"
	pkgError "github.com/planconv/planconv/pkg/error"
	"github.com/planconv/planconv/pkg/fingerprint"
)

// errLostReservation signals that the reservation was completed or
// reclaimed by someone else while this caller held it. The caller falls
// back into the lookup path instead of surfacing an error.
var errLostReservation = errors.New("reservation lost to another owner")

const lookupRetries = 3

type conversionUsecase struct {
	store     conversion.ICacheStore
	converter conversion.Converter
	fetcher   conversion.Fetcher
	pool      *convworker.ConversionPool
	cacheCfg  config.CacheConfig
	convCfg   config.ConverterConfig
	group     singleflight.Group
}

// NewConversionUsecase builds the coordinator that guarantees at most one
// live converter invocation per fingerprint across the deployment. The
// store's uniqueness constraint is the arbiter; the singleflight group only
// collapses identical requests inside this process on top of it.
func NewConversionUsecase(
	store conversion.ICacheStore,
	conv conversion.Converter,
	fetcher conversion.Fetcher,
	pool *convworker.ConversionPool,
	cacheCfg config.CacheConfig,
	convCfg config.ConverterConfig,
) conversion.IConversionUsecase {
	return &conversionUsecase{
		store:     store,
		converter: conv,
		fetcher:   fetcher,
		pool:      pool,
		cacheCfg:  cacheCfg,
		convCfg:   convCfg,
	}
}

func (u *conversionUsecase) Convert(ctx context.Context, document []byte, sourceTimestamp time.Time) (json.RawMessage, error) {
	fp := fingerprint.Sum(document)

	ch := u.group.DoChan(fp, func() (any, error) {
		// The flight outlives any single waiter; its own deadline comes
		// from the wait loop and the converter timeout.
		return u.convertFingerprint(context.Background(), fp, document, sourceTimestamp)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(json.RawMessage), nil
	case <-ctx.Done():
		return nil, pkgError.TimeoutError("conversion still in progress, retry later")
	}
}

func (u *conversionUsecase) ConvertFromURL(ctx context.Context, url string, sourceTimestamp time.Time) (json.RawMessage, error) {
	document, err := u.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, pkgError.FetchFailedError(err.Error())
	}
	return u.Convert(ctx, document, sourceTimestamp)
}

// convertFingerprint runs the reserve/wait/complete protocol for one
// fingerprint until it produces a result, a definitive failure, or the
// wait deadline passes.
func (u *conversionUsecase) convertFingerprint(ctx context.Context, fp string, document []byte, sourceTimestamp time.Time) (json.RawMessage, error) {
	deadline := time.Now().Add(u.cacheCfg.MaxWait)
	backoff := u.cacheCfg.PollInterval

	for {
		entry, err := u.lookupWithRetry(ctx, fp)
		if err != nil {
			return nil, pkgError.InternalServerError("conversion cache unavailable: " + err.Error())
		}

		now := time.Now()

		if entry == nil {
			outcome, reserveErr := u.store.Reserve(ctx, fp, sourceTimestamp)
			if reserveErr != nil {
				return nil, pkgError.InternalServerError("reserving conversion: " + reserveErr.Error())
			}
			if outcome == conversion.ReserveAcquired {
				logrus.Debugf("[COORDINATOR] Reserved %s, converting", fp)
				result, ownerErr := u.runAsOwner(fp, document)
				if errors.Is(ownerErr, errLostReservation) {
					continue
				}
				return result, ownerErr
			}
			// Lost the insert race; the next lookup tells us to whom.
			logrus.Debugf("[COORDINATOR] Lost reserve race on %s", fp)
			continue
		}

		if entry.Completed() {
			return entry.Result, nil
		}

		if entry.ReservationAge(now) > u.cacheCfg.StaleAfter {
			outcome, reclaimErr := u.store.ReclaimStale(ctx, fp, now.Add(-u.cacheCfg.StaleAfter))
			if reclaimErr != nil {
				return nil, pkgError.InternalServerError("reclaiming stale reservation: " + reclaimErr.Error())
			}
			if outcome == conversion.ReclaimAcquired {
				logrus.Warnf("[COORDINATOR] Reclaimed stale reservation on %s (held > %s), previous owner presumed dead", fp, u.cacheCfg.StaleAfter)
				result, ownerErr := u.runAsOwner(fp, document)
				if errors.Is(ownerErr, errLostReservation) {
					continue
				}
				return result, ownerErr
			}
			// Another reclaimer won or the entry completed; keep polling.
		}

		if now.After(deadline) {
			return nil, pkgError.TimeoutError(fmt.Sprintf("waited %s for conversion of %s, retry later", u.cacheCfg.MaxWait, fp))
		}

		if err := sleepWithContext(ctx, backoff); err != nil {
			return nil, pkgError.TimeoutError("conversion wait cancelled, retry later")
		}
		backoff *= 2
		if backoff > u.cacheCfg.PollMaxInterval {
			backoff = u.cacheCfg.PollMaxInterval
		}
	}
}

// runAsOwner invokes the converter for a fingerprint this caller has
// reserved, then completes the cache entry. The whole owner path runs
// detached from any waiter's deadline: the converter gets its own timeout
// and the completion write happens regardless of whether the original
// requester is still listening.
func (u *conversionUsecase) runAsOwner(fp string, document []byte) (json.RawMessage, error) {
	result, err := u.pool.Do(context.Background(), fp, func(context.Context) (json.RawMessage, error) {
		convCtx, cancel := context.WithTimeout(context.Background(), u.convCfg.Timeout)
		defer cancel()

		output, convErr := u.converter.Convert(convCtx, document)
		if convErr != nil {
			return nil, convErr
		}

		if completeErr := u.store.Complete(context.Background(), fp, output); completeErr != nil {
			if errors.Is(completeErr, conversion.ErrNotReserved) {
				return nil, errLostReservation
			}
			return nil, pkgError.InternalServerError("persisting conversion result: " + completeErr.Error())
		}

		logrus.Infof("[COORDINATOR] Completed conversion of %s (%s result)", fp, humanize.Bytes(uint64(len(output))))
		return output, nil
	})
	if err == nil {
		return result, nil
	}

	switch {
	case errors.Is(err, errLostReservation):
		// Someone else owns the fingerprint now; re-enter the lookup path.
		return nil, errLostReservation
	case errors.Is(err, conversion.ErrDocumentRejected):
		// The reservation stays in place so a deterministic rejection is
		// not hammered; stale reclamation frees it eventually.
		return nil, pkgError.ConversionRejectedError(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return nil, pkgError.ConverterCrashedError(fmt.Sprintf("converter exceeded its %s timeout", u.convCfg.Timeout))
	default:
		var generic pkgError.GenericError
		if errors.As(err, &generic) {
			return nil, err
		}
		return nil, pkgError.ConverterCrashedError(err.Error())
	}
}

// lookupWithRetry absorbs transient store hiccups on the read path.
func (u *conversionUsecase) lookupWithRetry(ctx context.Context, fp string) (*conversion.CacheEntry, error) {
	var lastErr error
	for attempt := 1; attempt <= lookupRetries; attempt++ {
		entry, err := u.store.Lookup(ctx, fp)
		if err == nil {
			return entry, nil
		}
		lastErr = err
		logrus.Warnf("[COORDINATOR] Lookup of %s failed (attempt %d/%d): %v", fp, attempt, lookupRetries, err)
		if attempt < lookupRetries {
			if sleepErr := sleepWithContext(ctx, time.Duration(attempt)*50*time.Millisecond); sleepErr != nil {
				return nil, lastErr
			}
		}
	}
	return nil, lastErr
}

func (u *conversionUsecase) Stats(ctx context.Context) (conversion.ConversionStats, error) {
	cacheStats, err := u.store.Stats(ctx)
	if err != nil {
		return conversion.ConversionStats{}, err
	}
	cacheStats.HumanResultSize = humanize.Bytes(uint64(cacheStats.ResultBytes))

	poolStats := u.pool.GetStats()
	return conversion.ConversionStats{
		Cache: cacheStats,
		Pool: conversion.PoolStats{
			Workers:         poolStats.NumWorkers,
			QueueCapacity:   poolStats.QueueSize,
			ActiveWorkers:   poolStats.ActiveWorkers,
			TotalDispatched: poolStats.TotalDispatched,
			TotalConverted:  poolStats.TotalProcessed,
			TotalErrors:     poolStats.TotalErrors,
		},
	}, nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
