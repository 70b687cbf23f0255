package config

import "github.com/spf13/viper"

func setDefaults(v *viper.Viper) {
	v.SetDefault("model.name", "base")
	v.SetDefault("model.compute_device", "auto")
	v.SetDefault("model.path", "")

	v.SetDefault("transcription.language_hint", "")
	v.SetDefault("transcription.rules.path", "")
	v.SetDefault("transcription.rules.iteration_limit", 30)

	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.channels", 1)
	v.SetDefault("audio.device_id", "default")
	v.SetDefault("audio.input_format", "pulse")
	v.SetDefault("audio.recorder_command", "ffmpeg")
	v.SetDefault("audio.chunk_duration_sec", 0.1)
	v.SetDefault("audio.max_duration_sec", 120.0)

	v.SetDefault("audio_processing.noise_gate_enabled", true)
	v.SetDefault("audio_processing.noise_gate_threshold_db", -40.0)
	v.SetDefault("audio_processing.agc_enabled", true)
	v.SetDefault("audio_processing.agc_target_db", -18.0)
	v.SetDefault("audio_processing.agc_max_gain_db", 30.0)
	v.SetDefault("audio_processing.agc_min_gain_db", -10.0)
	v.SetDefault("audio_processing.agc_window_ms", 300.0)
	v.SetDefault("audio_processing.agc_attack_ms", 10.0)
	v.SetDefault("audio_processing.agc_release_ms", 100.0)
	v.SetDefault("audio_processing.denoise_enabled", true)
	v.SetDefault("audio_processing.denoise_strength", 0.5)
	v.SetDefault("audio_processing.limiter_enabled", true)
	v.SetDefault("audio_processing.limiter_ceiling_db", -1.0)

	v.SetDefault("clipboard.copy_after", true)
	v.SetDefault("clipboard.paste_after", false)

	v.SetDefault("persistence.archive_audio", false)
	v.SetDefault("persistence.save_empty", false)
	v.SetDefault("persistence.retention_days", 90)
	v.SetDefault("persistence.max_entries", 10000)
	v.SetDefault("persistence.data_dir", "")

	v.SetDefault("hotkey.toggle_recording", "")
	v.SetDefault("hotkey.backend", "external")
}
