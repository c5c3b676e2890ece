package groups

import (
	"fmt"
	"strings"

	"github.com/recodex/sis-binding/internal/db/models"
)

// Naming of generated groups is currently hard-wired for the two locales the
// university frontend supports.
var (
	dayNames = map[string][]string{
		"en": {"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
		"cs": {"Ne", "Po", "Út", "St", "Čt", "Pá", "So"},
	}
	fortnightNames = map[string][]string{
		"en": {"Even weeks", "Odd weeks"},
		"cs": {"Sudé týdny", "Liché týdny"},
	}
	unscheduledNames = map[string]string{
		"en": "unscheduled",
		"cs": "nerozvrženo",
	}
	descriptionTemplates = map[string]string{
		"en": "A group created from SIS scheduling event `%s` for course `%s`.",
		"cs": "Skupina vytvořená z rozvrhového lístku SISu `%s` pro předmět `%s`.",
	}
)

// GroupName assembles a localized group name from the course caption and the
// event schedule, e.g. "Programming in C++ (Tue, 14:00, SW1)". An empty
// string is returned when the locale cannot be served.
func GroupName(event *models.ScheduleEvent, locale string) string {
	courseName := event.Course.Caption(locale)
	days, ok := dayNames[locale]
	if courseName == "" || !ok {
		return ""
	}

	var info []string
	if event.DayOfWeek != nil && *event.DayOfWeek >= 0 && *event.DayOfWeek < len(days) {
		info = append(info, days[*event.DayOfWeek])
	}
	if event.Time != nil {
		info = append(info, fmt.Sprintf("%d:%02d", *event.Time/60, *event.Time%60))
	}
	if event.Fortnight {
		info = append(info, fortnightNames[locale][event.FirstWeek%2])
	}
	if event.Room != "" {
		info = append(info, event.Room)
	}

	detail := unscheduledNames[locale]
	if len(info) > 0 {
		detail = strings.Join(info, ", ")
	}

	return fmt.Sprintf("%s (%s)", courseName, detail)
}

// GroupDescription assembles a localized description naming the bound SIS
// event and course.
func GroupDescription(event *models.ScheduleEvent, locale string) string {
	template, ok := descriptionTemplates[locale]
	if !ok {
		return ""
	}

	return fmt.Sprintf(template, event.SisID, event.Course.Code)
}

// LocalizedTexts builds the name and description maps for group creation,
// dropping locales that cannot be served.
func LocalizedTexts(event *models.ScheduleEvent) (names, descriptions map[string]string) {
	names = map[string]string{}
	descriptions = map[string]string{}
	for _, locale := range []string{"cs", "en"} {
		if name := GroupName(event, locale); name != "" {
			names[locale] = name
		}
		if desc := GroupDescription(event, locale); desc != "" {
			descriptions[locale] = desc
		}
	}

	return names, descriptions
}
