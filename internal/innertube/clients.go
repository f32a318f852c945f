package innertube

const (
	defaultHost        = "www.youtube.com"
	desktopUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	androidVRUserAgent = "com.google.android.apps.youtube.vr.oculus/1.71.26 (Linux; U; Android 12L; eureka-user Build/SQ3A.220605.009.A1) gzip"
)

var (
	// AndroidVRClient is the Oculus Quest app. Its adaptive formats are not
	// throttled and never ciphered.
	AndroidVRClient = ClientProfile{
		ID:                "android_vr",
		Name:              "ANDROID_VR",
		Version:           "1.71.26",
		ContextNameID:     28,
		UserAgent:         androidVRUserAgent,
		Host:              defaultHost,
		OSName:            "Android",
		OSVersion:         "12L",
		DeviceMake:        "Oculus",
		DeviceModel:       "Quest 3",
		AndroidSDKVersion: 32,
	}

	// AndroidClient mimics the official Android app.
	AndroidClient = ClientProfile{
		ID:                 "android",
		Name:               "ANDROID",
		Version:            "19.50.37",
		ContextNameID:      3,
		UserAgent:          "com.google.android.youtube/19.50.37 (Linux; U; Android 14) gzip",
		Host:               defaultHost,
		OSName:             "Android",
		OSVersion:          "14",
		DeviceMake:         "Google",
		DeviceModel:        "Pixel 8",
		Platform:           "MOBILE",
		AndroidSDKVersion:  34,
		TimeZone:           "America/New_York",
		PoTokenRecommended: true,
	}

	// IOSClient mimics the official iOS app.
	IOSClient = ClientProfile{
		ID:                 "ios",
		Name:               "IOS",
		Version:            "19.50.7",
		ContextNameID:      5,
		UserAgent:          "com.google.ios.youtube/19.50.7(iPhone16,2; U; CPU iOS 18_2 like Mac OS X; en_US)",
		Host:               defaultHost,
		OSName:             "iOS",
		OSVersion:          "18.2.1.22C150",
		DeviceMake:         "Apple",
		DeviceModel:        "iPhone16,2",
		Platform:           "MOBILE",
		TimeZone:           "America/New_York",
		PoTokenRecommended: true,
	}

	// WebClient is the standard desktop web client.
	WebClient = ClientProfile{
		ID:                 "web",
		Name:               "WEB",
		Version:            "2.20250110.01.00",
		ContextNameID:      1,
		UserAgent:          desktopUserAgent,
		Host:               defaultHost,
		OSName:             "Windows",
		OSVersion:          "10.0",
		SupportsCookies:    true,
		RequireJSPlayer:    true,
		PoTokenRecommended: true,
	}

	// WebEmbeddedClient is the embedded player.
	WebEmbeddedClient = ClientProfile{
		ID:              "web_embedded",
		Name:            "WEB_EMBEDDED_PLAYER",
		Version:         "1.20250110.01.00",
		ContextNameID:   56,
		UserAgent:       desktopUserAgent,
		Host:            defaultHost,
		Screen:          "EMBED",
		SupportsCookies: true,
		RequireJSPlayer: true,
	}

	// TVClient is the living room HTML5 client.
	TVClient = ClientProfile{
		ID:              "tv",
		Name:            "TVHTML5",
		Version:         "7.20250110.13.00",
		ContextNameID:   7,
		UserAgent:       "Mozilla/5.0 (ChromiumStylePlatform) Cobalt/25.lts.30.1034943-gold (unlike Gecko), Unknown_TV_Unknown_0/Unknown (Unknown, Unknown)",
		Host:            defaultHost,
		OSName:          "Cobalt",
		OSVersion:       "25",
		SupportsCookies: true,
		RequireJSPlayer: true,
	}
)

// DefaultClientOrder is the fan-out set used when none is configured.
var DefaultClientOrder = []string{"android_vr", "web_embedded", "ios", "android", "tv"}
