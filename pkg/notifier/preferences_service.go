package notifier

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Preference operations. The preference set is read on every dispatch, so it
// is cached cache-aside with delete-on-write: a stale opt-out is never served
// longer than one write.

// GetPreferences returns the user's preference set, creating defaults on
// first access.
func (s *Service) GetPreferences(ctx context.Context, userID string) (*Preferences, error) {
	return s.loadPreferences(ctx, userID)
}

// UpdatePreferences applies a partial update and returns the new set.
func (s *Service) UpdatePreferences(ctx context.Context, userID string, patch PreferencesPatch) (*Preferences, error) {
	if patch.QuietHours != nil {
		if err := patch.QuietHours.Validate(); err != nil {
			return nil, err
		}
	}
	if patch.UnsubscribedCategories != nil {
		for _, c := range *patch.UnsubscribedCategories {
			if !c.Valid() {
				return nil, fmt.Errorf("%w: unknown category %q", ErrValidation, c)
			}
		}
	}

	prefs, err := s.loadPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	prefs.apply(patch)
	if err := s.savePreferences(ctx, prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

// AddDeviceToken registers a push device token, deduplicated.
func (s *Service) AddDeviceToken(ctx context.Context, userID, token string) (*Preferences, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: device token is required", ErrValidation)
	}

	prefs, err := s.loadPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !slices.Contains(prefs.DeviceTokens, token) {
		prefs.DeviceTokens = append(prefs.DeviceTokens, token)
		if err := s.savePreferences(ctx, prefs); err != nil {
			return nil, err
		}
	}
	return prefs, nil
}

// RemoveDeviceToken removes a push device token. Removing an unknown token
// is a no-op.
func (s *Service) RemoveDeviceToken(ctx context.Context, userID, token string) (*Preferences, error) {
	prefs, err := s.loadPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	if i := slices.Index(prefs.DeviceTokens, token); i >= 0 {
		prefs.DeviceTokens = slices.Delete(prefs.DeviceTokens, i, i+1)
		if err := s.savePreferences(ctx, prefs); err != nil {
			return nil, err
		}
	}
	return prefs, nil
}

// SubscribeToCategory removes the category from the user's unsubscribed set.
func (s *Service) SubscribeToCategory(ctx context.Context, userID string, category Category) (*Preferences, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrValidation, category)
	}

	prefs, err := s.loadPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	if i := slices.Index(prefs.UnsubscribedCategories, category); i >= 0 {
		prefs.UnsubscribedCategories = slices.Delete(prefs.UnsubscribedCategories, i, i+1)
		if err := s.savePreferences(ctx, prefs); err != nil {
			return nil, err
		}
	}
	return prefs, nil
}

// UnsubscribeFromCategory suppresses every future notification of the
// category for this user.
func (s *Service) UnsubscribeFromCategory(ctx context.Context, userID string, category Category) (*Preferences, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrValidation, category)
	}

	prefs, err := s.loadPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !slices.Contains(prefs.UnsubscribedCategories, category) {
		prefs.UnsubscribedCategories = append(prefs.UnsubscribedCategories, category)
		if err := s.savePreferences(ctx, prefs); err != nil {
			return nil, err
		}
	}
	return prefs, nil
}

// UnsubscribeFromAll sets the global opt-out. Every future notification for
// the user resolves to no channels and is marked FAILED.
func (s *Service) UnsubscribeFromAll(ctx context.Context, userID string) (*Preferences, error) {
	prefs, err := s.loadPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !prefs.UnsubscribedFromAll {
		prefs.UnsubscribedFromAll = true
		if err := s.savePreferences(ctx, prefs); err != nil {
			return nil, err
		}
	}
	return prefs, nil
}

// VerifyEmail records a verified email address, unlocking the email channel.
// Verification itself (token round-trip) happens upstream; this is the
// post-verification commit.
func (s *Service) VerifyEmail(ctx context.Context, userID, address string) (*Preferences, error) {
	if strings.TrimSpace(address) == "" {
		return nil, fmt.Errorf("%w: email address is required", ErrValidation)
	}

	prefs, err := s.loadPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	prefs.Email = address
	prefs.EmailVerified = true
	if err := s.savePreferences(ctx, prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

// VerifyPhone records a verified phone number, unlocking the SMS channel.
func (s *Service) VerifyPhone(ctx context.Context, userID, phone string) (*Preferences, error) {
	if strings.TrimSpace(phone) == "" {
		return nil, fmt.Errorf("%w: phone number is required", ErrValidation)
	}

	prefs, err := s.loadPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	prefs.Phone = phone
	prefs.PhoneVerified = true
	if err := s.savePreferences(ctx, prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

func (s *Service) loadPreferences(ctx context.Context, userID string) (*Preferences, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	if cached, ok := s.prefsCache.Get(userID); ok {
		return &cached, nil
	}

	prefs, err := s.storage.GetPreferences(ctx, userID)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		// Lazy default population on first access.
		defaults := DefaultPreferences(userID)
		defaults.UpdatedAt = s.now().UTC()
		if err := s.storage.SavePreferences(ctx, &defaults); err != nil {
			return nil, err
		}
		prefs = &defaults
	default:
		return nil, err
	}

	s.prefsCache.Set(userID, *prefs)
	return prefs, nil
}

func (s *Service) savePreferences(ctx context.Context, prefs *Preferences) error {
	prefs.UpdatedAt = s.now().UTC()
	if err := s.storage.SavePreferences(ctx, prefs); err != nil {
		return err
	}
	// Delete-on-write keeps dispatches from reading a stale opt-out.
	s.prefsCache.Delete(prefs.UserID)
	return nil
}
