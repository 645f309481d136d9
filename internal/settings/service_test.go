package settings

import (
	"context"
	"strings"
	"testing"

	"github.com/reelhub/backend/internal/models"
	"github.com/reelhub/backend/internal/testutil"
	"github.com/stretchr/testify/suite"
)

type SettingsServiceTestSuite struct {
	suite.Suite
	svc    *Service
	userID string
	ctx    context.Context
}

func (suite *SettingsServiceTestSuite) SetupTest() {
	db := testutil.NewDB(suite.T())
	suite.svc = NewService(NewGormRepository(db))
	suite.userID = testutil.CreateUser(suite.T(), db, "viewer").ID
	suite.ctx = context.Background()
}

func ptr[T any](v T) *T { return &v }

func (suite *SettingsServiceTestSuite) TestDefaults() {
	values, err := suite.svc.Get(suite.ctx, suite.userID)
	suite.Require().NoError(err)
	suite.Equal(Defaults(), values)
	suite.Equal(models.LayoutFeed, values.LayoutMode)
	suite.True(values.Autoplay)
	suite.True(values.Muted)
	suite.False(values.ABREnabled)
}

func (suite *SettingsServiceTestSuite) TestUpdatePatch() {
	updated, err := suite.svc.Update(suite.ctx, suite.userID, Patch{LayoutMode: ptr(models.LayoutGrid)})
	suite.Require().NoError(err)
	suite.Equal(models.LayoutGrid, updated.LayoutMode)
	suite.True(updated.Autoplay)

	updated, err = suite.svc.Update(suite.ctx, suite.userID, Patch{Muted: ptr(false), ABREnabled: ptr(true)})
	suite.Require().NoError(err)

	stored, err := suite.svc.Get(suite.ctx, suite.userID)
	suite.Require().NoError(err)
	suite.Equal(updated, stored)
	suite.Equal(models.LayoutGrid, stored.LayoutMode)
	suite.False(stored.Muted)
	suite.True(stored.ABREnabled)
}

func (suite *SettingsServiceTestSuite) TestUpdateRejectsUnknownLayout() {
	_, err := suite.svc.Update(suite.ctx, suite.userID, Patch{LayoutMode: ptr("carousel")})
	suite.ErrorIs(err, ErrInvalidSettings)

	stored, err := suite.svc.Get(suite.ctx, suite.userID)
	suite.Require().NoError(err)
	suite.Equal(models.LayoutFeed, stored.LayoutMode)
}

func (suite *SettingsServiceTestSuite) TestReset() {
	_, err := suite.svc.Update(suite.ctx, suite.userID, Patch{Autoplay: ptr(false)})
	suite.Require().NoError(err)

	values, err := suite.svc.Reset(suite.ctx, suite.userID)
	suite.Require().NoError(err)
	suite.Equal(Defaults(), values)
}

func (suite *SettingsServiceTestSuite) TestProfiles() {
	_, err := suite.svc.Update(suite.ctx, suite.userID, Patch{LayoutMode: ptr(models.LayoutGrid), Muted: ptr(false)})
	suite.Require().NoError(err)

	profile, err := suite.svc.SaveProfile(suite.ctx, suite.userID, " commute ", false)
	suite.Require().NoError(err)
	suite.Equal("commute", profile.Name)

	_, err = suite.svc.SaveProfile(suite.ctx, suite.userID, "commute", false)
	suite.ErrorIs(err, ErrProfileExists)

	_, err = suite.svc.SaveProfile(suite.ctx, suite.userID, "  ", false)
	suite.ErrorIs(err, ErrInvalidSettings)

	_, err = suite.svc.Reset(suite.ctx, suite.userID)
	suite.Require().NoError(err)

	applied, err := suite.svc.ApplyProfile(suite.ctx, suite.userID, profile.ID)
	suite.Require().NoError(err)
	suite.Equal(models.LayoutGrid, applied.LayoutMode)
	suite.False(applied.Muted)

	// Overwrite replaces the snapshot in place
	_, err = suite.svc.Reset(suite.ctx, suite.userID)
	suite.Require().NoError(err)
	overwritten, err := suite.svc.SaveProfile(suite.ctx, suite.userID, "commute", true)
	suite.Require().NoError(err)
	suite.Equal(profile.ID, overwritten.ID)
	suite.Equal(Defaults(), overwritten.Values)

	profiles, err := suite.svc.Profiles(suite.ctx, suite.userID)
	suite.Require().NoError(err)
	suite.Len(profiles, 1)

	suite.Require().NoError(suite.svc.DeleteProfile(suite.ctx, suite.userID, profile.ID))
	suite.ErrorIs(suite.svc.DeleteProfile(suite.ctx, suite.userID, profile.ID), ErrProfileNotFound)
	_, err = suite.svc.ApplyProfile(suite.ctx, suite.userID, profile.ID)
	suite.ErrorIs(err, ErrProfileNotFound)
}

func (suite *SettingsServiceTestSuite) TestProfilesAreOwnerScoped() {
	profile, err := suite.svc.SaveProfile(suite.ctx, suite.userID, "mine", false)
	suite.Require().NoError(err)

	_, err = suite.svc.ApplyProfile(suite.ctx, "someone-else", profile.ID)
	suite.ErrorIs(err, ErrProfileNotFound)
	suite.ErrorIs(suite.svc.DeleteProfile(suite.ctx, "someone-else", profile.ID), ErrProfileNotFound)
}

func (suite *SettingsServiceTestSuite) TestExportImportRoundTrip() {
	_, err := suite.svc.Update(suite.ctx, suite.userID, Patch{LayoutMode: ptr(models.LayoutGrid), ABREnabled: ptr(true)})
	suite.Require().NoError(err)
	_, err = suite.svc.SaveProfile(suite.ctx, suite.userID, "night", false)
	suite.Require().NoError(err)

	data, err := suite.svc.Export(suite.ctx, suite.userID)
	suite.Require().NoError(err)
	suite.Contains(string(data), "[settings]")
	suite.Contains(string(data), `layout_mode = "grid"`)
	suite.Contains(string(data), "[profiles.night]")

	_, err = suite.svc.Reset(suite.ctx, suite.userID)
	suite.Require().NoError(err)
	suite.Require().NoError(suite.svc.DeleteProfile(suite.ctx, suite.userID, suite.profileID("night")))

	imported, err := suite.svc.Import(suite.ctx, suite.userID, data)
	suite.Require().NoError(err)
	suite.Equal(models.LayoutGrid, imported.LayoutMode)
	suite.True(imported.ABREnabled)
	suite.NotEmpty(suite.profileID("night"))
}

func (suite *SettingsServiceTestSuite) TestImportPartial() {
	imported, err := suite.svc.Import(suite.ctx, suite.userID, []byte("[settings]\nmuted = false\n"))
	suite.Require().NoError(err)
	suite.False(imported.Muted)
	suite.True(imported.Autoplay)
	suite.Equal(models.LayoutFeed, imported.LayoutMode)
}

func (suite *SettingsServiceTestSuite) TestImportRejectsBadInput() {
	cases := map[string]string{
		"syntax":      "[settings\n",
		"unknown key": "[settings]\nvolume = 3\n",
		"bad layout":  "[settings]\nlayout_mode = \"tiles\"\n",
		"bad profile": "[profiles.x]\nlayout_mode = \"tiles\"\n",
		"wrong type":  "[settings]\nautoplay = \"yes\"\n",
	}
	for name, doc := range cases {
		suite.Run(name, func() {
			_, err := suite.svc.Import(suite.ctx, suite.userID, []byte(doc))
			suite.Error(err)
		})
	}

	stored, err := suite.svc.Get(suite.ctx, suite.userID)
	suite.Require().NoError(err)
	suite.Equal(Defaults(), stored)
	profiles, err := suite.svc.Profiles(suite.ctx, suite.userID)
	suite.Require().NoError(err)
	suite.Empty(profiles)
}

func (suite *SettingsServiceTestSuite) profileID(name string) string {
	profiles, err := suite.svc.Profiles(suite.ctx, suite.userID)
	suite.Require().NoError(err)
	for _, p := range profiles {
		if strings.EqualFold(p.Name, name) {
			return p.ID
		}
	}
	return ""
}

func TestSettingsServiceSuite(t *testing.T) {
	suite.Run(t, new(SettingsServiceTestSuite))
}
