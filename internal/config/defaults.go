package config

const (
	defaultStateDir = "~/.local/state/kctvfetch"

	defaultBaseURL          = "https://kcnawatch.org"
	defaultSearchURL        = "https://kcnawatch.org/kctv-archive/?start={date}&end={date}"
	defaultSearchDateLayout = "02-01-2006"
	defaultLinkDateLayout   = "Monday January 02, 2006"

	defaultOCRURL = "http://api.ocr.space/parse/image"

	// SearchDatePlaceholder is substituted with the formatted date in Site.SearchURL.
	SearchDatePlaceholder = "{date}"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
		},
		Site: Site{
			BaseURL:           defaultBaseURL,
			SearchURL:         defaultSearchURL,
			SearchDateLayout:  defaultSearchDateLayout,
			ArticleClass:      "article-desc",
			LabelClass:        "broadcast-head",
			LabelText:         "Full Broadcast",
			LinkDateLayout:    defaultLinkDateLayout,
			LinkAttribute:     "href",
			PlayerSelector:    "video#bitmovinplayer-video-player",
			SourceSelector:    "source",
			SourceAttribute:   "src",
			PlayerWaitSeconds: 30,
		},
		Browser: Browser{
			Headless:                 true,
			Flags:                    []string{"disable-infobars", "disable-extensions", "disable-gpu", "disable-dev-shm-usage", "no-sandbox"},
			Nudge:                    true,
			NavigationTimeoutSeconds: 60,
		},
		Download: Download{
			TimeoutMS:  60000,
			Attempts:   3,
			ChunkBytes: 8192,
		},
		OCR: OCR{
			APIURL:            defaultOCRURL,
			Language:          "kor",
			Engine:            "1",
			Concurrency:       1,
			RequestsPerMinute: 60,
			TimeoutSeconds:    60,
		},
		Timestamps: Timestamps{
			Primary:                Window{Start: 300, End: 720},
			Later:                  Window{Start: 900, End: 2400},
			Stride:                 125,
			Crop:                   Crop{Width: 250, Height: 110, X: 30, Y: 75},
			Marker:                 "시",
			EpochCorrectionSeconds: 32400,
		},
		Processing: Processing{
			CleanTemp:     true,
			AspectSamples: 5,
			FFmpeg:        "ffmpeg",
			FFprobe:       "ffprobe",
		},
		Logging: Logging{
			Format:        "console",
			Level:         "info",
			RetentionDays: 30,
		},
	}
}
