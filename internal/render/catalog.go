// Package render holds the rendering option catalog, the option record edited
// by a session, and the pure request builder that turns a sketch plus options
// into a generation or edit request for the image model.
package render

import "fmt"

// Style is the artistic output style of a render.
type Style string

const (
	StyleRealistic      Style = "realistic"
	StylePhotorealistic Style = "photorealistic"
	StyleSketch         Style = "sketch"
	StyleWatercolor     Style = "watercolor"
	StyleCyberpunk      Style = "cyberpunk"
	StyleNightView      Style = "night_view"
	StyleClayModel      Style = "clay_model"
)

// Lighting is the lighting mode applied to the scene.
type Lighting string

const (
	LightingNatural  Lighting = "natural"
	LightingStudio   Lighting = "studio"
	LightingDramatic Lighting = "dramatic"
	LightingWarm     Lighting = "warm"
)

// Environment is the HDRI environment preset surrounding the building.
type Environment string

const (
	EnvironmentDowntown Environment = "downtown"
	EnvironmentForest   Environment = "forest"
	EnvironmentInterior Environment = "interior"
)

// AspectRatio is the width:height ratio of the output image.
type AspectRatio string

const (
	AspectSquare    AspectRatio = "1:1"
	AspectPortrait  AspectRatio = "3:4"
	AspectClassic   AspectRatio = "4:3"
	AspectTall      AspectRatio = "9:16"
	AspectCinematic AspectRatio = "16:9"
)

// ImageSize is the output resolution tier.
type ImageSize string

const (
	Size1K ImageSize = "1K"
	Size2K ImageSize = "2K"
	Size4K ImageSize = "4K"
)

// DefaultImageSize is the only tier that can be rendered without a selected credential.
const DefaultImageSize = Size1K

// Descriptor describes one enumerated option value.
type Descriptor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// Prompt is the fragment this value contributes to the generation prompt.
	Prompt string `json:"-"`
}

// SizeDescriptor describes a resolution tier.
type SizeDescriptor struct {
	Descriptor
	RequiresCredential bool `json:"requiresCredential"`
}

// QuickCommand is a canned edit command offered next to the free-text box.
type QuickCommand struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

// Enumerations in display order.
var (
	Styles = []Style{
		StylePhotorealistic, StyleRealistic, StyleNightView, StyleWatercolor,
		StyleSketch, StyleCyberpunk, StyleClayModel,
	}
	Lightings    = []Lighting{LightingNatural, LightingStudio, LightingDramatic, LightingWarm}
	Environments = []Environment{EnvironmentInterior, EnvironmentDowntown, EnvironmentForest}
	AspectRatios = []AspectRatio{AspectSquare, AspectClassic, AspectPortrait, AspectCinematic, AspectTall}
	ImageSizes   = []ImageSize{Size1K, Size2K, Size4K}
)

var styleTable = map[Style]Descriptor{
	StylePhotorealistic: {
		ID: string(StylePhotorealistic), Name: "واقعي جداً (V-Ray)",
		Description: "أعلى مستوى من التفاصيل والانعكاسات",
		Prompt:      "an ultra photorealistic V-Ray style architectural render with physically based materials, accurate reflections and global illumination",
	},
	StyleRealistic: {
		ID: string(StyleRealistic), Name: "رندر معماري (Enscape)",
		Description: "توازن بين السرعة والواقعية",
		Prompt:      "a clean realistic real-time architectural visualization in the style of Enscape, balanced materials and soft shadows",
	},
	StyleNightView: {
		ID: string(StyleNightView), Name: "لقطة ليلية",
		Description: "أضواء دافئة وانعكاسات ليلية",
		Prompt:      "a night-time architectural shot with warm interior lights glowing through the glazing, illuminated facade and wet night reflections",
	},
	StyleWatercolor: {
		ID: string(StyleWatercolor), Name: "رسم مائي فني",
		Description: "أسلوب يدوي احترافي",
		Prompt:      "a professional hand-painted architectural watercolor illustration with loose washes and fine ink linework",
	},
	StyleSketch: {
		ID: string(StyleSketch), Name: "اسكتش يدوي",
		Description: "خطوط قلم رصاص معمارية",
		Prompt:      "a refined architectural pencil sketch with confident linework, hatching for shadows and a paper texture",
	},
	StyleCyberpunk: {
		ID: string(StyleCyberpunk), Name: "سايبربانك",
		Description: "نيون وأجواء مستقبلية",
		Prompt:      "a cinematic cyberpunk rendition with neon signage, haze and saturated magenta and cyan highlights",
	},
	StyleClayModel: {
		ID: string(StyleClayModel), Name: "مجسم طيني",
		Description: "مجسم أبيض بدون خامات",
		Prompt:      "a white clay model render with uniform matte material, ambient occlusion and no textures",
	},
}

var lightingTable = map[Lighting]Descriptor{
	LightingNatural:  {ID: string(LightingNatural), Name: "ضوء طبيعي", Prompt: "soft natural daylight with a clear sky"},
	LightingStudio:   {ID: string(LightingStudio), Name: "إضاءة استوديو", Prompt: "even studio lighting with controlled soft boxes and minimal harsh shadows"},
	LightingDramatic: {ID: string(LightingDramatic), Name: "إضاءة درامية", Prompt: "dramatic high-contrast lighting with deep shadows and strong directional sun"},
	LightingWarm:     {ID: string(LightingWarm), Name: "غروب دافئ", Prompt: "warm golden-hour sunset light with long shadows"},
}

var environmentTable = map[Environment]Descriptor{
	EnvironmentInterior: {
		ID: string(EnvironmentInterior), Name: "رندر داخلي",
		Description: "إضاءة اصطناعية وتفاصيل داخلية ناعمة",
		Prompt:      "an interior HDRI with artificial fixtures, soft bounce light and refined interior details",
	},
	EnvironmentDowntown: {
		ID: string(EnvironmentDowntown), Name: "وسط المدينة",
		Description: "انعكاسات أبراج وظلال مدنية",
		Prompt:      "a downtown city HDRI with surrounding towers reflected in the glass and urban shadows",
	},
	EnvironmentForest: {
		ID: string(EnvironmentForest), Name: "وسط الغابة",
		Description: "إضاءة طبيعية خضراء وانعكاسات أشجار",
		Prompt:      "a forest HDRI with green natural light filtered through trees and foliage reflections",
	},
}

var aspectTable = map[AspectRatio]Descriptor{
	AspectSquare:    {ID: string(AspectSquare), Name: "مربع", Prompt: "square 1:1 framing"},
	AspectClassic:   {ID: string(AspectClassic), Name: "كلاسيك", Prompt: "classic 4:3 landscape framing"},
	AspectPortrait:  {ID: string(AspectPortrait), Name: "بورتريه", Prompt: "3:4 portrait framing"},
	AspectCinematic: {ID: string(AspectCinematic), Name: "سينمائي", Prompt: "cinematic 16:9 widescreen framing"},
	AspectTall:      {ID: string(AspectTall), Name: "طولي", Prompt: "tall 9:16 vertical framing"},
}

var sizeTable = map[ImageSize]SizeDescriptor{
	Size1K: {Descriptor: Descriptor{ID: string(Size1K), Name: "1K Standard", Description: "سريع", Prompt: "standard 1K output"}},
	Size2K: {Descriptor: Descriptor{ID: string(Size2K), Name: "2K HD", Description: "جودة V-Ray (Pro)", Prompt: "high definition 2K output"}, RequiresCredential: true},
	Size4K: {Descriptor: Descriptor{ID: string(Size4K), Name: "4K Ultra", Description: "فائق الدقة (Pro)", Prompt: "ultra high definition 4K output"}, RequiresCredential: true},
}

// QuickCommands are the canned post-render edit commands.
var QuickCommands = []QuickCommand{
	{ID: "people", Name: "إضافة أشخاص", Prompt: "أضف أشخاصاً بملابس عصرية يتفاعلون مع المكان بشكل واقعي"},
	{ID: "plants", Name: "تنسيق حدائق", Prompt: "أضف نباتات زينة وأشجار لاندسكيب احترافية"},
	{ID: "cars", Name: "سيارات فارهة", Prompt: "أضف سيارة مرسيدس سوداء حديثة في مقدمة الصورة"},
	{ID: "materials", Name: "رخام فاخر", Prompt: "استبدل خامة الأرضية برخام إيطالي فاخر ذو انعكاس عالي"},
	{ID: "weather", Name: "أجواء ماطرة", Prompt: "اجعل الجو ماطراً مع إضافة انعكاسات الماء على الأرضية"},
}

// InstructionTags are short pre-render instructions offered under the
// custom instruction box.
var InstructionTags = []string{"أضف نباتات", "مبنى خشبي", "أجواء ماطرة"}

// StyleInfo returns the descriptor of s.
func StyleInfo(s Style) (Descriptor, bool) {
	d, ok := styleTable[s]
	return d, ok
}

// LightingInfo returns the descriptor of l.
func LightingInfo(l Lighting) (Descriptor, bool) {
	d, ok := lightingTable[l]
	return d, ok
}

// EnvironmentInfo returns the descriptor of e.
func EnvironmentInfo(e Environment) (Descriptor, bool) {
	d, ok := environmentTable[e]
	return d, ok
}

// AspectRatioInfo returns the descriptor of a.
func AspectRatioInfo(a AspectRatio) (Descriptor, bool) {
	d, ok := aspectTable[a]
	return d, ok
}

// ImageSizeInfo returns the descriptor of s.
func ImageSizeInfo(s ImageSize) (SizeDescriptor, bool) {
	d, ok := sizeTable[s]
	return d, ok
}

// RequiresCredential reports whether rendering at s needs a selected access
// credential. Unknown tiers are treated as paid.
func (s ImageSize) RequiresCredential() bool {
	d, ok := sizeTable[s]
	if !ok {
		return true
	}
	return d.RequiresCredential
}

// ValidateCatalog checks that every descriptor table covers its enumeration
// and that every value contributes prompt text. Commands call it at start-up.
func ValidateCatalog() error {
	for _, s := range Styles {
		if err := checkDescriptor("style", string(s), styleTable[s]); err != nil {
			return err
		}
	}
	for _, l := range Lightings {
		if err := checkDescriptor("lighting", string(l), lightingTable[l]); err != nil {
			return err
		}
	}
	for _, e := range Environments {
		if err := checkDescriptor("environment", string(e), environmentTable[e]); err != nil {
			return err
		}
	}
	for _, a := range AspectRatios {
		if err := checkDescriptor("aspect ratio", string(a), aspectTable[a]); err != nil {
			return err
		}
	}
	for _, s := range ImageSizes {
		if err := checkDescriptor("image size", string(s), sizeTable[s].Descriptor); err != nil {
			return err
		}
	}
	if len(styleTable) != len(Styles) || len(lightingTable) != len(Lightings) ||
		len(environmentTable) != len(Environments) || len(aspectTable) != len(AspectRatios) ||
		len(sizeTable) != len(ImageSizes) {
		return fmt.Errorf("catalog: descriptor table has entries outside its enumeration")
	}
	if sizeTable[DefaultImageSize].RequiresCredential {
		return fmt.Errorf("catalog: default image size %s must not require a credential", DefaultImageSize)
	}
	return nil
}

func checkDescriptor(kind, id string, d Descriptor) error {
	if d.ID != id {
		return fmt.Errorf("catalog: %s %q has no descriptor", kind, id)
	}
	if d.Prompt == "" {
		return fmt.Errorf("catalog: %s %q has an empty prompt fragment", kind, id)
	}
	return nil
}

// Catalog is the serializable view of every option table, used by the UI.
type Catalog struct {
	Styles          []Descriptor     `json:"styles"`
	Lightings       []Descriptor     `json:"lightings"`
	Environments    []Descriptor     `json:"environments"`
	AspectRatios    []Descriptor     `json:"aspectRatios"`
	ImageSizes      []SizeDescriptor `json:"imageSizes"`
	QuickCommands   []QuickCommand   `json:"quickCommands"`
	InstructionTags []string         `json:"instructionTags"`
	Defaults        Options          `json:"defaults"`
}

// BuildCatalog returns the option tables in display order.
func BuildCatalog() Catalog {
	c := Catalog{
		QuickCommands:   QuickCommands,
		InstructionTags: InstructionTags,
		Defaults:        DefaultOptions(),
	}
	for _, s := range Styles {
		c.Styles = append(c.Styles, styleTable[s])
	}
	for _, l := range Lightings {
		c.Lightings = append(c.Lightings, lightingTable[l])
	}
	for _, e := range Environments {
		c.Environments = append(c.Environments, environmentTable[e])
	}
	for _, a := range AspectRatios {
		c.AspectRatios = append(c.AspectRatios, aspectTable[a])
	}
	for _, s := range ImageSizes {
		c.ImageSizes = append(c.ImageSizes, sizeTable[s])
	}
	return c
}
