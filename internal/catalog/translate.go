package catalog

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Localized is the French storefront copy of a product
type Localized struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Tag         string `json:"tag"`
	AccentColor string `json:"accentColor"`
}

type translationRule struct {
	pattern *regexp.Regexp
	out     Localized
}

func rule(pattern string, out Localized) translationRule {
	return translationRule{pattern: regexp.MustCompile(`(?i)` + pattern), out: out}
}

// Rules are evaluated in order; the first match wins, so specific
// patterns must come before generic ones.
var translationRules = []translationRule{
	rule(`\b(dog|cat|pet)\b.*\b(brush|comb|groom)`, Localized{
		Name:        "Brosse de toilettage pour animaux",
		Description: "Une brosse douce qui retire les poils morts et garde le pelage de votre compagnon brillant.",
		Category:    "Animaux",
		Tag:         "Toilettage",
		AccentColor: "#F59E0B",
	}),
	rule(`\b(dog|cat|pet)\b.*\b(bed|mat|cushion)`, Localized{
		Name:        "Coussin douillet pour animaux",
		Description: "Un couchage moelleux et lavable pour des siestes confortables.",
		Category:    "Animaux",
		Tag:         "Confort",
		AccentColor: "#F59E0B",
	}),
	rule(`\b(dog|cat|pet)\b`, Localized{
		Name:        "Accessoire pour animaux",
		Description: "Un accessoire pratique pour le quotidien de votre animal.",
		Category:    "Animaux",
		Tag:         "Animaux",
		AccentColor: "#F59E0B",
	}),
	rule(`\bled\b.*\bstrip`, Localized{
		Name:        "Ruban LED multicolore",
		Description: "Un ruban lumineux à coller pour créer une ambiance colorée en quelques minutes.",
		Category:    "Maison",
		Tag:         "Éclairage",
		AccentColor: "#8B5CF6",
	}),
	rule(`\b(desk|table|night)\s*lamp|\blamp\b`, Localized{
		Name:        "Lampe de bureau design",
		Description: "Une lumière réglable qui s'adapte au travail comme à la détente.",
		Category:    "Maison",
		Tag:         "Éclairage",
		AccentColor: "#8B5CF6",
	}),
	rule(`\bphone\b.*\b(holder|stand|mount)`, Localized{
		Name:        "Support de téléphone",
		Description: "Un support stable pour garder votre téléphone à portée de vue.",
		Category:    "High-Tech",
		Tag:         "Accessoire",
		AccentColor: "#3B82F6",
	}),
	rule(`\b(earbuds?|earphones?|headphones?|headset)\b`, Localized{
		Name:        "Écouteurs sans fil",
		Description: "Un son clair et une autonomie confortable pour vos trajets.",
		Category:    "High-Tech",
		Tag:         "Audio",
		AccentColor: "#3B82F6",
	}),
	rule(`\b(charger|charging|power\s*bank|cable)\b`, Localized{
		Name:        "Accessoire de charge",
		Description: "Rechargez vos appareils rapidement, à la maison comme en déplacement.",
		Category:    "High-Tech",
		Tag:         "Énergie",
		AccentColor: "#3B82F6",
	}),
	rule(`\b(blender|juicer)\b`, Localized{
		Name:        "Blender portable",
		Description: "Préparez smoothies et jus frais partout grâce à ce mixeur rechargeable.",
		Category:    "Cuisine",
		Tag:         "Bien-être",
		AccentColor: "#10B981",
	}),
	rule(`\b(kitchen|cooking|spatula|peeler|slicer|grater)\b`, Localized{
		Name:        "Ustensile de cuisine malin",
		Description: "Un ustensile astucieux qui simplifie la préparation des repas.",
		Category:    "Cuisine",
		Tag:         "Astuce",
		AccentColor: "#10B981",
	}),
	rule(`\byoga\b|\bfitness\b|\bexercise\b`, Localized{
		Name:        "Accessoire de yoga et fitness",
		Description: "Antidérapant et léger, idéal pour vos séances à la maison.",
		Category:    "Sport",
		Tag:         "Fitness",
		AccentColor: "#EF4444",
	}),
	rule(`\bcar\b.*\b(organi[sz]er|storage|holder)|\bcar\b`, Localized{
		Name:        "Rangement pour voiture",
		Description: "Gardez l'habitacle ordonné avec ce rangement pratique.",
		Category:    "Auto",
		Tag:         "Rangement",
		AccentColor: "#6366F1",
	}),
	rule(`\bjewel(le)?ry\b.*\b(box|case|organi[sz]er)`, Localized{
		Name:        "Boîte à bijoux",
		Description: "Un écrin élégant pour ranger bagues, colliers et boucles d'oreilles.",
		Category:    "Mode",
		Tag:         "Rangement",
		AccentColor: "#EC4899",
	}),
	rule(`\b(necklace|bracelet|earrings?|ring)\b`, Localized{
		Name:        "Bijou fantaisie",
		Description: "Une touche d'éclat pour sublimer toutes vos tenues.",
		Category:    "Mode",
		Tag:         "Bijoux",
		AccentColor: "#EC4899",
	}),
	rule(`\bmakeup\b|\bcosmetic\b|\bbrush(es)?\b`, Localized{
		Name:        "Pinceaux de maquillage",
		Description: "Des pinceaux doux pour un teint parfait et un maquillage précis.",
		Category:    "Beauté",
		Tag:         "Maquillage",
		AccentColor: "#DB2777",
	}),
	rule(`\b(plant|flower)\s*pots?\b|\bplanter\b`, Localized{
		Name:        "Pot de fleurs décoratif",
		Description: "Un pot moderne pour mettre vos plantes en valeur.",
		Category:    "Jardin",
		Tag:         "Déco",
		AccentColor: "#22C55E",
	}),
	rule(`\b(storage|organi[sz]er|box)\b`, Localized{
		Name:        "Organisateur de rangement",
		Description: "Un rangement malin pour gagner de la place au quotidien.",
		Category:    "Maison",
		Tag:         "Rangement",
		AccentColor: "#6366F1",
	}),
}

const (
	fallbackCategory    = "Divers"
	fallbackTag         = "Nouveauté"
	fallbackAccentColor = "#6B7280"
	fallbackDescription = "Une trouvaille sélectionnée pour sa qualité et son prix."
	maxFallbackWords    = 6
)

var (
	bracketed  = regexp.MustCompile(`[\(\[\{][^\)\]\}]*[\)\]\}]`)
	nonLetters = regexp.MustCompile(`[^\p{L}\p{N}\s'-]+`)
)

// Translate produces French copy for an English product name. Without a
// matching rule it falls back to a cleaned, title-cased English name.
func Translate(nameEn string) Localized {
	for _, r := range translationRules {
		if r.pattern.MatchString(nameEn) {
			return r.out
		}
	}
	return Localized{
		Name:        cleanName(nameEn),
		Description: fallbackDescription,
		Category:    fallbackCategory,
		Tag:         fallbackTag,
		AccentColor: fallbackAccentColor,
	}
}

func cleanName(nameEn string) string {
	s := bracketed.ReplaceAllString(nameEn, " ")
	s = nonLetters.ReplaceAllString(s, " ")

	var kept []string
	for _, w := range strings.Fields(s) {
		if noiseWords[strings.ToLower(w)] {
			continue
		}
		kept = append(kept, w)
		if len(kept) == maxFallbackWords {
			break
		}
	}
	if len(kept) == 0 {
		return strings.TrimSpace(nameEn)
	}
	// Casers are stateful and not shared between goroutines
	return cases.Title(language.French).String(strings.Join(kept, " "))
}
