// ABOUTME: Prompt text for the generative collaborators
// ABOUTME: Builds casting, clone, script and lip-sync prompts
package collab

import (
	"encoding/json"
	"fmt"

	"github.com/castvox/castvox-go/internal/catalog"
)

func voicesJSON(voices []catalog.Metadata) string {
	data, err := json.Marshal(voices)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func recommendPrompt(brief string, voices []catalog.Metadata) string {
	return fmt.Sprintf(`Anda adalah Direktur Casting Suara ahli untuk ispoken.co, platform pemasaran media sosial terkemuka di Indonesia.

Data Suara Tersedia:
%s

Permintaan Pengguna: %q

Tugas:
1. Pilih 3 suara teratas dari daftar yang paling cocok dengan kebutuhan pemasaran media sosial pengguna.
2. Buat Instruksi Sistem (System Instruction) dalam bahasa Indonesia yang mendefinisikan persona/karakter secara mendalam.
3. Tulis contoh teks (sample text) dalam bahasa Indonesia (2-3 kalimat) yang relevan dengan konteks pemasaran media sosial (Instagram, TikTok, YouTube, dll).

STRUKTUR PROMPT (Markdown):
Gunakan double newlines (\n\n) antar bagian.

## Profil Audio
Mendefinisikan identitas karakter, arketipe, usia, latar belakang, dll.

## Adegan (Scene)
Menjelaskan lingkungan fisik dan "vibe" dari konten tersebut.

## Catatan Direktur
Panduan performa: gaya bicara, jeda nafas, kecepatan, artikulasi, dan aksen (misal: aksen Jakarta gaul, aksen formal, dll).

## Konteks Sampel
Memberikan titik awal kontekstual bagi pengisi suara.

## Transkrip
Teks yang akan diucapkan oleh model dalam bahasa Indonesia yang natural.
`, voicesJSON(voices), brief)
}

func clonePrompt(voices []catalog.Metadata) string {
	return fmt.Sprintf(`Analisis sampel suara manusia yang diberikan dan temukan kecocokan digital terbaik dari perpustakaan suara TTS kami.

Data Suara Tersedia:
%s

Tugas Anda:
1. Identifikasi Jenis Kelamin, Nada (Rendah/Sedang/Tinggi), dan Karakteristik vokal.
2. Pilih 1 nama suara dari daftar yang paling mendekati sampel ini.
3. Jelaskan mengapa suara tersebut dipilih.

Respon harus dalam format JSON.
`, voicesJSON(voices))
}

func scriptPrompt(idea string, platform Platform) string {
	return fmt.Sprintf("Tulis naskah pendek untuk %s tentang %q dalam Bahasa Indonesia yang sangat natural. Maks 30 kata.", platform, idea)
}

func lipSyncPrompt(script string) string {
	return fmt.Sprintf("A highly realistic video of this character speaking and moving their lips perfectly to the following script: %q. The head and eyes should move naturally while speaking. High fidelity, studio quality.", script)
}
