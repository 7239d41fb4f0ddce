// Package bot glues the onebot host client, the rule set and the
// image store into the keyword auto-reply bot. The bot:
//   - listens for message events and runs the rule matcher on them;
//   - fires at most one reply per message (text, image, or both);
//   - dispatches the /reply admin command surface (add, addre, list,
//     del, on, off, mode, save);
//   - gates mutating commands on the configured admin list, list and
//     help stay open;
//   - persists every rule mutation immediately.
//
// Lifecycle:
//   - LoadConfig, then New(cfg) — loads the persisted rules and
//     creates the data dir on first run;
//   - Start() connects to the host and returns, Stop() shuts down.
//
// Group messages trigger the matcher only when the bot is mentioned
// or the wake prefix is used (require_mention), private chats always
// do. Commands work either way.
package bot
