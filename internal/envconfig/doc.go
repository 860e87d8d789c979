// Package envconfig applies the environment configuration steps: idempotent
// edits of text files (shell profiles, pg_hba.conf) and guarded provisioning
// commands.
//
// Every edit is detect-before-write. A patch reads the target, computes the
// minimal change and writes only when the content differs, so applying the
// same patch twice leaves the file untouched the second time. Appended blocks
// are gated on a marker line and are never appended twice.
//
// Within a step, privileged writes complete before the OnChange actions (for
// example a database restart) run, and OnChange runs only when a patch
// actually changed a file.
package envconfig
