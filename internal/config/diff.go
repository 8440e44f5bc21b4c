package config

// ConfigDiff describes what changed between two configs. Only the log level
// can be applied to a running process; every other change is reported so the
// operator knows a restart is needed.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// SpeakerChanged is tracked separately because it is the tweak people
	// make most often while tuning the voice.
	SpeakerChanged bool
	NewSpeaker     int

	// RestartRequired lists dotted config paths whose new values only take
	// effect after a process restart.
	RestartRequired []string
}

// Changed reports whether the diff contains any change at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.SpeakerChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.TTS.Speaker != new.TTS.Speaker {
		d.SpeakerChanged = true
		d.NewSpeaker = new.TTS.Speaker
		d.RestartRequired = append(d.RestartRequired, "tts.speaker")
	}

	restart := func(path string, changed bool) {
		if changed {
			d.RestartRequired = append(d.RestartRequired, path)
		}
	}

	restart("server.host", old.Server.Host != new.Server.Host)
	restart("server.port", old.Server.Port != new.Server.Port)

	restart("translator.provider", old.Translator.Provider != new.Translator.Provider)
	restart("translator.model", old.Translator.Model != new.Translator.Model)
	restart("translator.base_url", old.Translator.BaseURL != new.Translator.BaseURL)
	restart("translator.api_key", old.Translator.APIKey != new.Translator.APIKey)
	restart("translator.timeout_seconds", old.Translator.TimeoutSeconds != new.Translator.TimeoutSeconds)

	restart("tts.provider", old.TTS.Provider != new.TTS.Provider)
	restart("tts.base_url", old.TTS.BaseURL != new.TTS.BaseURL)
	restart("tts.timeout_seconds", old.TTS.TimeoutSeconds != new.TTS.TimeoutSeconds)
	restart("tts.speed_scale", old.TTS.SpeedScale != new.TTS.SpeedScale)
	restart("tts.pitch_scale", old.TTS.PitchScale != new.TTS.PitchScale)
	restart("tts.volume_scale", old.TTS.VolumeScale != new.TTS.VolumeScale)
	restart("tts.audio_dir", old.TTS.AudioDir != new.TTS.AudioDir)

	restart("pipeline.translation_queue_size", old.Pipeline.TranslationQueueSize != new.Pipeline.TranslationQueueSize)
	restart("pipeline.tts_queue_size", old.Pipeline.TTSQueueSize != new.Pipeline.TTSQueueSize)
	restart("pipeline.playback_queue_size", old.Pipeline.PlaybackQueueSize != new.Pipeline.PlaybackQueueSize)
	restart("pipeline.translate_workers", old.Pipeline.TranslateWorkers != new.Pipeline.TranslateWorkers)
	restart("pipeline.stop_timeout_seconds", old.Pipeline.StopTimeoutSeconds != new.Pipeline.StopTimeoutSeconds)

	restart("dedup.window_ms", old.Dedup.WindowMS != new.Dedup.WindowMS)
	restart("dedup.lock_timeout_ms", old.Dedup.LockTimeoutMS != new.Dedup.LockTimeoutMS)

	restart("translation_log.dir", old.TranslationLog.Dir != new.TranslationLog.Dir)

	return d
}
