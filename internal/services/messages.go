package services

import (
	"fmt"
	"strings"

	"github.com/charlesng35/yaruyo/internal/models"
	"github.com/charlesng35/yaruyo/internal/timeslot"
)

const (
	fallbackSubject = "勉強"
	memoPreviewLen  = 30
)

var subjectLabels = map[string]string{
	"en":              "英語",
	"jp":              "国語",
	"math":            "数学",
	"arith":           "算数",
	"sci":             "理科",
	"soc":             "社会",
	"life":            "生活",
	"music":           "音楽",
	"zukou":           "図工",
	"pe":              "体育",
	"home":            "家庭",
	"art":             "美術",
	"tech":            "技術",
	"modernJa":        "現代文",
	"classicalJa":     "古典",
	"kanbun":          "漢文",
	"physics":         "物理",
	"chemistry":       "化学",
	"biology":         "生物",
	"earth":           "地学",
	"historyJp":       "日本史",
	"historyWorld":    "世界史",
	"geography":       "地理",
	"gendaiSoc":       "現代社会",
	"ethics":          "倫理",
	"politicsEconomy": "政治・経済",
	"shodo":           "書道",
	"info":            "情報",
	"other":           "その他",
}

var resultLabels = map[string]string{
	models.ResultLight:     "軽めに",
	models.ResultAsPlanned: "予定どおり",
	models.ResultExtra:     "多めに",
}

func subjectsLabel(codes []string) string {
	if len(codes) == 0 {
		return fallbackSubject
	}
	labels := make([]string, 0, len(codes))
	for _, code := range codes {
		if label, ok := subjectLabels[code]; ok {
			labels = append(labels, label)
			continue
		}
		labels = append(labels, code)
	}
	return strings.Join(labels, "・")
}

func planDeclaredMessage(actor string, subjects []string, startSlot *string) string {
	if startSlot != nil && timeslot.IsKey(*startSlot) {
		return fmt.Sprintf("%sが%sから「%s」をやるよ ✏️", actor, timeslot.FormatTime(*startSlot), subjectsLabel(subjects))
	}
	return fmt.Sprintf("%sが「%s」をやるよ ✏️", actor, subjectsLabel(subjects))
}

func planRecordedMessage(actor string, subjects []string, result string, memo *string) string {
	msg := fmt.Sprintf("%sが「%s」をやったよ！🏆\n（%s）", actor, subjectsLabel(subjects), resultLabels[result])
	if memo != nil && *memo != "" {
		msg += "\n" + truncateRunes(*memo, memoPreviewLen, "…")
	}
	return msg
}

func startReminderMessage(subjects []string, startSlot string) string {
	return fmt.Sprintf("⏰ やるよの時間です！\n\n%s\n%s\n\nそろそろ始めよう。", subjectsLabel(subjects), timeslot.FormatDateTime(startSlot))
}

func reactionLikeMessage(actor, targetType string) string {
	label := "やったよ"
	if targetType == models.ReactionTargetPlan {
		label = "やるよ"
	}
	return fmt.Sprintf("%sがあなたの「%s」に👍しました", actor, label)
}

func familyBroadcastMessage(sender, text string) string {
	return sender + "：" + text
}

func defaultFamilyName(owner string) string {
	return owner + "の家族"
}
