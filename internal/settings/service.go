package settings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/reelhub/backend/internal/models"
	"github.com/reelhub/backend/internal/realtime"
)

var ErrInvalidSettings = errors.New("invalid settings")

// Service applies validation on top of a Repository
type Service struct {
	repo Repository
}

var _ realtime.SettingsLoader = (*Service)(nil)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Patch updates only the fields that are set
type Patch struct {
	LayoutMode *string `json:"layout_mode" toml:"layout_mode"`
	Autoplay   *bool   `json:"autoplay" toml:"autoplay"`
	Muted      *bool   `json:"muted" toml:"muted"`
	ABREnabled *bool   `json:"abr_enabled" toml:"abr_enabled"`
}

func (p Patch) apply(v models.SettingsValues) models.SettingsValues {
	if p.LayoutMode != nil {
		v.LayoutMode = *p.LayoutMode
	}
	if p.Autoplay != nil {
		v.Autoplay = *p.Autoplay
	}
	if p.Muted != nil {
		v.Muted = *p.Muted
	}
	if p.ABREnabled != nil {
		v.ABREnabled = *p.ABREnabled
	}
	return v
}

func validate(v models.SettingsValues) error {
	switch v.LayoutMode {
	case models.LayoutFeed, models.LayoutGrid:
		return nil
	}
	return fmt.Errorf("%w: layout_mode must be %q or %q", ErrInvalidSettings, models.LayoutFeed, models.LayoutGrid)
}

// Get returns the stored settings, or the defaults
func (s *Service) Get(ctx context.Context, userID string) (models.SettingsValues, error) {
	return s.repo.Load(ctx, userID)
}

// Update applies a patch and saves the result
func (s *Service) Update(ctx context.Context, userID string, patch Patch) (models.SettingsValues, error) {
	current, err := s.repo.Load(ctx, userID)
	if err != nil {
		return models.SettingsValues{}, err
	}
	next := patch.apply(current)
	if err := validate(next); err != nil {
		return models.SettingsValues{}, err
	}
	if err := s.repo.Save(ctx, userID, next); err != nil {
		return models.SettingsValues{}, err
	}
	return next, nil
}

// Reset restores the defaults
func (s *Service) Reset(ctx context.Context, userID string) (models.SettingsValues, error) {
	values := Defaults()
	return values, s.repo.Save(ctx, userID, values)
}

func (s *Service) Profiles(ctx context.Context, userID string) ([]models.SettingsProfile, error) {
	return s.repo.ListProfiles(ctx, userID)
}

// SaveProfile snapshots the current settings under name, replacing a profile
// of the same name when overwrite is set.
func (s *Service) SaveProfile(ctx context.Context, userID, name string, overwrite bool) (*models.SettingsProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: profile name is required", ErrInvalidSettings)
	}

	current, err := s.repo.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile := &models.SettingsProfile{UserID: userID, Name: name, Values: current}
	err = s.repo.CreateProfile(ctx, profile)
	if errors.Is(err, ErrProfileExists) && overwrite {
		existing, err := s.findProfileByName(ctx, userID, name)
		if err != nil {
			return nil, err
		}
		existing.Values = current
		return existing, s.repo.UpdateProfile(ctx, existing)
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *Service) findProfileByName(ctx context.Context, userID, name string) (*models.SettingsProfile, error) {
	profiles, err := s.repo.ListProfiles(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range profiles {
		if profiles[i].Name == name {
			return &profiles[i], nil
		}
	}
	return nil, ErrProfileNotFound
}

// ApplyProfile makes a profile's values the current settings
func (s *Service) ApplyProfile(ctx context.Context, userID, profileID string) (models.SettingsValues, error) {
	profile, err := s.repo.GetProfile(ctx, userID, profileID)
	if err != nil {
		return models.SettingsValues{}, err
	}
	if err := s.repo.Save(ctx, userID, profile.Values); err != nil {
		return models.SettingsValues{}, err
	}
	return profile.Values, nil
}

func (s *Service) DeleteProfile(ctx context.Context, userID, profileID string) error {
	return s.repo.DeleteProfile(ctx, userID, profileID)
}

// exportDoc is the TOML layout of an export
type exportDoc struct {
	Settings models.SettingsValues            `toml:"settings"`
	Profiles map[string]models.SettingsValues `toml:"profiles,omitempty"`
}

// Export renders the settings and every profile as TOML
func (s *Service) Export(ctx context.Context, userID string) ([]byte, error) {
	current, err := s.repo.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	profiles, err := s.repo.ListProfiles(ctx, userID)
	if err != nil {
		return nil, err
	}

	doc := exportDoc{Settings: current}
	if len(profiles) > 0 {
		doc.Profiles = make(map[string]models.SettingsValues, len(profiles))
		for _, p := range profiles {
			doc.Profiles[p.Name] = p.Values
		}
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}
	return buf.Bytes(), nil
}

// importDoc uses patches so a partial file only touches the keys it names
type importDoc struct {
	Settings Patch            `toml:"settings"`
	Profiles map[string]Patch `toml:"profiles"`
}

// Import applies a TOML export. Profiles are created or overwritten by name;
// nothing is written when any section is invalid.
func (s *Service) Import(ctx context.Context, userID string, data []byte) (models.SettingsValues, error) {
	var doc importDoc
	meta, err := toml.Decode(string(data), &doc)
	if err != nil {
		return models.SettingsValues{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return models.SettingsValues{}, fmt.Errorf("%w: unknown key %s", ErrInvalidSettings, undecoded[0].String())
	}

	current, err := s.repo.Load(ctx, userID)
	if err != nil {
		return models.SettingsValues{}, err
	}
	next := doc.Settings.apply(current)
	if err := validate(next); err != nil {
		return models.SettingsValues{}, err
	}

	profiles := make(map[string]models.SettingsValues, len(doc.Profiles))
	for name, patch := range doc.Profiles {
		values := patch.apply(Defaults())
		if err := validate(values); err != nil {
			return models.SettingsValues{}, fmt.Errorf("profile %q: %w", name, err)
		}
		profiles[name] = values
	}

	if err := s.repo.Save(ctx, userID, next); err != nil {
		return models.SettingsValues{}, err
	}
	for name, values := range profiles {
		if err := s.upsertProfile(ctx, userID, name, values); err != nil {
			return models.SettingsValues{}, err
		}
	}
	return next, nil
}

func (s *Service) upsertProfile(ctx context.Context, userID, name string, values models.SettingsValues) error {
	existing, err := s.findProfileByName(ctx, userID, name)
	if errors.Is(err, ErrProfileNotFound) {
		return s.repo.CreateProfile(ctx, &models.SettingsProfile{UserID: userID, Name: name, Values: values})
	}
	if err != nil {
		return err
	}
	existing.Values = values
	return s.repo.UpdateProfile(ctx, existing)
}
