package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/yaruyo/internal/models"
)

func TestSubjectsLabel(t *testing.T) {
	require.Equal(t, "勉強", subjectsLabel(nil))
	require.Equal(t, "数学・英語", subjectsLabel([]string{"math", "en"}))
	require.Equal(t, "政治・経済・ピアノ", subjectsLabel([]string{"politicsEconomy", "ピアノ"}))
}

func TestNotificationMessages(t *testing.T) {
	slot := "202501101930"
	require.Equal(t, "たろうが19:30から「理科」をやるよ ✏️", planDeclaredMessage("たろう", []string{"sci"}, &slot))

	bad := "1930"
	require.Equal(t, "たろうが「理科」をやるよ ✏️", planDeclaredMessage("たろう", []string{"sci"}, &bad))

	require.Equal(t, "たろうが「理科」をやったよ！🏆\n（予定どおり）", planRecordedMessage("たろう", []string{"sci"}, models.ResultAsPlanned, nil))

	short := "がんばった"
	require.Equal(t, "たろうが「理科」をやったよ！🏆\n（軽めに）\nがんばった", planRecordedMessage("たろう", []string{"sci"}, models.ResultLight, &short))

	require.Equal(t, "ママ：おやつあるよ", familyBroadcastMessage("ママ", "おやつあるよ"))
	require.Equal(t, "たろうの家族", defaultFamilyName("たろう"))
}
