package autoreply

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostops/concierge/internal/domain"
)

func checkinMessage() *domain.Message {
	name := "지민"
	return &domain.Message{
		ID:           "m1",
		ThreadID:     "t1",
		GuestSegment: "체크인 몇 시부터 가능한가요?",
		GuestName:    &name,
	}
}

func TestTemplates_CheckinKorean(t *testing.T) {
	bundle := BuildContext(gong101Profile(), checkinMessage(), domain.IntentCheckinQuestion, "", "ko")

	out, err := NewTemplates().Render(bundle)
	require.NoError(t, err)
	assert.Contains(t, out, "지민")
	assert.Contains(t, out, "14:00")
	assert.Contains(t, out, "22:00")
	assert.True(t, strings.HasSuffix(out, "감사합니다!"))
}

func TestTemplates_GuestNameDefaultsWhenMissing(t *testing.T) {
	m := checkinMessage()
	m.GuestName = nil
	bundle := BuildContext(gong101Profile(), m, domain.IntentCheckinQuestion, "", "ko")

	out, err := NewTemplates().Render(bundle)
	require.NoError(t, err)
	assert.Contains(t, out, "게스트님")
}

func TestTemplates_UnknownLocaleFallsBackToEnglish(t *testing.T) {
	bundle := BuildContext(gong101Profile(), checkinMessage(), domain.IntentCheckinQuestion, "", "de")

	out, err := NewTemplates().Render(bundle)
	require.NoError(t, err)
	assert.Contains(t, out, "Check-in is available from 14:00 until 22:00")
}

func TestTemplates_MissingFactMissesLookup(t *testing.T) {
	profile := gong101Profile()
	profile.CheckinFrom = ""
	bundle := BuildContext(profile, checkinMessage(), domain.IntentCheckinQuestion, "", "ko")

	_, err := NewTemplates().Render(bundle)
	assert.ErrorIs(t, err, ErrNoTemplate)
}

func TestTemplates_NoTemplateForComplaint(t *testing.T) {
	bundle := BuildContext(gong101Profile(), checkinMessage(), domain.IntentComplaint, "", "ko")

	_, err := NewTemplates().Render(bundle)
	assert.ErrorIs(t, err, ErrNoTemplate)
}

func TestGenericFallbackByLocale(t *testing.T) {
	assert.Contains(t, GenericFallback("ko"), "안녕하세요")
	assert.Contains(t, GenericFallback("ko-KR"), "안녕하세요")
	assert.Contains(t, GenericFallback("en"), "Hello")
	assert.Contains(t, GenericFallback(""), "Hello")
}

func TestBuildContext_CheckinProjection(t *testing.T) {
	profile := gong101Profile()
	profile.AccessGuide = "현관 도어락 비밀번호는 체크인 당일 안내됩니다."
	profile.HouseRules = []string{"실내 금연", "22시 이후 정숙"}

	bundle := BuildContext(profile, checkinMessage(), domain.IntentCheckinQuestion, "", "")

	assert.Equal(t, "ko", bundle.Locale, "profile locale applies when no override")
	assert.Equal(t, "GONG-101", bundle.PropertyCode)
	assert.Equal(t, []string{domain.FAQKeyCheckinInfo, domain.FAQKeyHouseRules}, bundle.FAQKeys())
	assert.Contains(t, bundle.PromptBlock(), "from 14:00 until 22:00")
	assert.Contains(t, bundle.PromptBlock(), "실내 금연")
}

func TestBuildContext_PetProjection(t *testing.T) {
	profile := gong101Profile()
	profile.PetPolicy = "소형견 1마리까지 가능, 추가 요금 있음"

	bundle := BuildContext(profile, checkinMessage(), domain.IntentPetPolicyQuestion, "", "ko")
	assert.Equal(t, []string{domain.FAQKeyPetPolicy}, bundle.FAQKeys())
}

func TestBuildContext_ParkingFineIntent(t *testing.T) {
	profile := gong101Profile()
	profile.ParkingPolicy = "건물 지하주차장 1대 무료"
	profile.Amenities = map[string]any{"wifi": true, "washer": true}

	bundle := BuildContext(profile, checkinMessage(), domain.IntentAmenityQuestion, "PARKING", "ko")
	keys := bundle.FAQKeys()
	require.NotEmpty(t, keys)
	assert.Equal(t, domain.FAQKeyParkingInfo, keys[0], "parking knowledge leads for the parking sub-intent")
	assert.Contains(t, keys, domain.FAQKeyAmenityInfo)
}

func TestBuildContext_NilProfile(t *testing.T) {
	bundle := BuildContext(nil, checkinMessage(), domain.IntentCheckinQuestion, "", "en")

	assert.Empty(t, bundle.Sections)
	assert.Empty(t, bundle.FAQKeys())
	assert.Equal(t, "", bundle.PromptBlock())
	assert.Equal(t, "체크인 몇 시부터 가능한가요?", bundle.GuestSegment)
}

func TestFlattenAmenities(t *testing.T) {
	out := flattenAmenities(map[string]any{
		"wifi":    true,
		"parking": "1 free spot",
		"sauna":   false,
		"beds":    2,
	})
	assert.Equal(t, "beds: 2, parking: 1 free spot, wifi", out)
}
